package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/auth"
	"github.com/clipcast/clipcast/internal/auth/jwt"
	"github.com/clipcast/clipcast/internal/notify"
	"github.com/clipcast/clipcast/internal/presence"
	"github.com/clipcast/clipcast/internal/relay"
	"github.com/clipcast/clipcast/pkg/metrics"
	"github.com/clipcast/clipcast/pkg/trace"
)

// deregisterTimeout bounds the presence cleanup of a closed connection.
const deregisterTimeout = 5 * time.Second

// Gateway owns the live websocket connections of this process. Each
// connection is authenticated during the handshake and registered in the
// shared presence registry before any application data flows; the registry
// and the local connection table never diverge.
type Gateway struct {
	logger   *zap.Logger
	verifier *jwt.Service
	registry presence.Registry
	relay    relay.Relay
	metrics  *metrics.Metrics
	tracer   *trace.Builder
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*connection
}

// NewGateway creates a new connection gateway
func NewGateway(logger *zap.Logger, verifier *jwt.Service, registry presence.Registry, rel relay.Relay, m *metrics.Metrics) *Gateway {
	return &Gateway{
		logger:   logger.Named("gateway"),
		verifier: verifier,
		registry: registry,
		relay:    rel,
		metrics:  m,
		tracer:   trace.Tracer("gateway"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				// Notifications are world-readable UI hints; origin policy
				// is enforced by the credential, not the Origin header.
				return true
			},
		},
		conns: make(map[string]*connection),
	}
}

// RegisterRoutes mounts the websocket handshake endpoint
func (g *Gateway) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/notifications", g.HandleNotifications)
}

// HandleNotifications runs the connection handshake: extract credential,
// verify, register presence, then upgrade. A connection is never left open
// unauthenticated, and never upgraded half-registered.
func (g *Gateway) HandleNotifications(c *gin.Context) {
	token, err := auth.ExtractToken(c.Request)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := g.verifier.ValidateToken(token)
	if err != nil {
		// Generic refusal; verification internals are not leaked.
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	connID := uuid.NewString()
	if err := g.registry.Add(c.Request.Context(), claims.UserID, connID); err != nil {
		g.logger.Error("presence registration failed, refusing connection",
			zap.Int64("user_id", claims.UserID),
			zap.String("connection_id", connID),
			zap.Error(err))
		g.metrics.RegistryError("add")
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade failed after registration; roll the registry back so the
		// two never diverge.
		g.deregister(claims.UserID, connID)
		g.logger.Warn("websocket upgrade failed",
			zap.String("connection_id", connID),
			zap.Error(err))
		return
	}

	conn := newConnection(connID, claims.UserID, ws)
	g.mu.Lock()
	g.conns[connID] = conn
	g.mu.Unlock()
	g.metrics.ConnOpened()

	g.logger.Info("client connected",
		zap.String("connection_id", connID),
		zap.Int64("user_id", claims.UserID))

	go conn.writePump(g.logger)
	g.readLoop(conn)
}

// readLoop consumes the connection until the peer goes away. Inbound frames
// carry no application data; the loop exists to observe the close.
func (g *Gateway) readLoop(conn *connection) {
	defer g.drop(conn)

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// drop closes a connection and removes every trace of it: local table first,
// then the shared registry.
func (g *Gateway) drop(conn *connection) {
	g.mu.Lock()
	_, tracked := g.conns[conn.id]
	delete(g.conns, conn.id)
	g.mu.Unlock()
	if !tracked {
		return
	}

	conn.close()
	g.deregister(conn.userID, conn.id)
	g.metrics.ConnClosed()

	g.logger.Info("client disconnected",
		zap.String("connection_id", conn.id),
		zap.Int64("user_id", conn.userID))
}

// deregister removes a presence entry. On failure the entry goes stale until
// an operator intervenes; there is no TTL reclamation.
func (g *Gateway) deregister(userID int64, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
	defer cancel()

	if err := g.registry.Remove(ctx, userID, connID); err != nil {
		g.logger.Error("presence deregistration failed, entry is stale",
			zap.Int64("user_id", userID),
			zap.String("connection_id", connID),
			zap.Error(err))
		g.metrics.RegistryError("remove")
	}
}

// Broadcast delivers an event to every local connection outside the
// exclusion set and relays it to peer processes. Delivery is best-effort and
// fire-and-forget; a relay failure degrades to local-only delivery.
func (g *Gateway) Broadcast(ctx context.Context, evt *notify.Event, exclude []string) {
	scope := g.tracer.Start(ctx, "gateway.broadcast").WithAttrs(
		attribute.String("event", evt.Name),
		attribute.Int("excluded", len(exclude)),
	)
	defer scope.End()

	g.broadcastLocal(evt, exclude)

	env := &relay.Envelope{Event: evt, Exclude: exclude}
	if err := g.relay.Publish(scope.Ctx, env); err != nil {
		g.logger.Warn("relay publish failed, delivering to local connections only",
			zap.String("event", evt.Name),
			zap.Error(err))
		g.metrics.NotificationDropped(evt.Name, "relay_publish")
		return
	}
	g.metrics.RelayPublished()
}

// broadcastLocal is the local half of a broadcast: push the event to every
// connection held by this process whose id is not excluded. A single
// failed send is logged and does not affect the remaining recipients.
func (g *Gateway) broadcastLocal(evt *notify.Event, exclude []string) {
	data, err := json.Marshal(evt)
	if err != nil {
		g.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	g.mu.RLock()
	targets := make([]*connection, 0, len(g.conns))
	for id, conn := range g.conns {
		if _, skip := excluded[id]; skip {
			continue
		}
		targets = append(targets, conn)
	}
	g.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.enqueue(data); err != nil {
			g.logger.Warn("dropping event for connection",
				zap.String("connection_id", conn.id),
				zap.String("event", evt.Name),
				zap.Error(err))
			g.metrics.NotificationDropped(evt.Name, "transport_send")
			continue
		}
		g.metrics.NotificationDelivered(evt.Name)
	}
}

// Start subscribes to the cross-process relay and begins applying the local
// half of every envelope published by a peer. It returns once the
// subscription is active. If the relay is unreachable the gateway keeps
// serving local-only delivery.
func (g *Gateway) Start(ctx context.Context) {
	ch, err := g.relay.Subscribe(ctx)
	if err != nil {
		g.logger.Warn("relay unavailable, serving local-only delivery",
			zap.Error(err))
		return
	}

	go g.applyLoop(ctx, ch)
}

func (g *Gateway) applyLoop(ctx context.Context, ch <-chan *relay.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			g.metrics.RelayReceived()
			g.broadcastLocal(env.Event, env.Exclude)
		}
	}
}

// Shutdown closes every live connection and deregisters it.
func (g *Gateway) Shutdown(_ context.Context) {
	g.mu.Lock()
	conns := make([]*connection, 0, len(g.conns))
	for _, conn := range g.conns {
		conns = append(conns, conn)
	}
	g.mu.Unlock()

	for _, conn := range conns {
		_ = conn.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
		g.drop(conn)
	}
}

// connCount reports how many connections this process currently holds.
func (g *Gateway) connCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}
