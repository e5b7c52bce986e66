package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/auth/jwt"
	"github.com/clipcast/clipcast/internal/common/cnst"
	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/clipcast/clipcast/internal/notify"
	"github.com/clipcast/clipcast/internal/presence"
	"github.com/clipcast/clipcast/internal/relay"
	"github.com/clipcast/clipcast/pkg/metrics"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testProcess struct {
	gateway *Gateway
	server  *httptest.Server
}

// newTestProcess builds one simulated gateway process: its own relay
// connection, its own connection table, sharing the given registry.
func newTestProcess(t *testing.T, ctx context.Context, reg presence.Registry, redisAddr string) *testProcess {
	t.Helper()

	verifier, err := jwt.NewService(jwt.Config{SecretKey: testSecret, Duration: time.Hour})
	assert.NoError(t, err)

	rel, err := relay.NewRedisRelay(zap.NewNop(), config.RelayConfig{
		Channel: "clipcast:notifications:test",
		Redis: config.RedisConfig{
			ClusterType: cnst.RedisClusterTypeSingle,
			Addr:        redisAddr,
			Timeout:     2 * time.Second,
		},
	})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = rel.Close() })

	g := NewGateway(zap.NewNop(), verifier, reg, rel, metrics.New(config.MetricsConfig{Namespace: "test"}))
	g.Start(ctx)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	g.RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testProcess{gateway: g, server: server}
}

func mintToken(t *testing.T, userID int64, email string) string {
	t.Helper()
	svc, err := jwt.NewService(jwt.Config{SecretKey: testSecret, Duration: time.Hour})
	assert.NoError(t, err)
	tok, err := svc.GenerateToken(userID, email)
	assert.NoError(t, err)
	return tok
}

// dial opens a websocket connection against a test process, authenticating
// with the access_token cookie.
func dial(t *testing.T, p *testProcess, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(p.server.URL, "http") + "/ws/notifications"
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", cnst.AccessTokenCookie+"="+token)
	}
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	if ws != nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return ws, resp, err
}

func readEvent(t *testing.T, ws *websocket.Conn, timeout time.Duration) (*notify.Event, error) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var evt notify.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

func waitForMembers(t *testing.T, reg presence.Registry, userID int64, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		members, err := reg.Members(context.Background(), userID)
		assert.NoError(t, err)
		if len(members) == want {
			return members
		}
		if time.Now().After(deadline) {
			t.Fatalf("user %d has %d connections, want %d", userID, len(members), want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandshake_RejectsMissingToken(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestProcess(t, ctx, presence.NewMemoryRegistry(), mr.Addr())

	ws, resp, err := dial(t, p, "")
	assert.Nil(t, ws)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Zero(t, p.gateway.connCount())
}

func TestHandshake_RejectsInvalidToken(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := presence.NewMemoryRegistry()
	p := newTestProcess(t, ctx, reg, mr.Addr())

	ws, resp, err := dial(t, p, "not-a-token")
	assert.Nil(t, ws)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	// A connection that fails verification is never registered.
	assert.Zero(t, p.gateway.connCount())
	online, err := reg.IsOnline(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, online)
}

func TestHandshake_RegistersAndDeregistersPresence(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := presence.NewMemoryRegistry()
	p := newTestProcess(t, ctx, reg, mr.Addr())

	ws, _, err := dial(t, p, mintToken(t, 1, "alice@example.com"))
	assert.NoError(t, err)
	assert.NotNil(t, ws)

	members := waitForMembers(t, reg, 1, 1)
	assert.Len(t, members, 1)

	ws2, _, err := dial(t, p, mintToken(t, 1, "alice@example.com"))
	assert.NoError(t, err)
	assert.NotNil(t, ws2)
	waitForMembers(t, reg, 1, 2)

	// Closing one connection removes exactly that entry.
	assert.NoError(t, ws.Close())
	remaining := waitForMembers(t, reg, 1, 1)
	assert.NotContains(t, remaining, members[0])
}

func TestHandshake_RegistryUnavailableFailsClosed(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry on its own miniredis that dies before the handshake.
	regRedis, err := miniredis.Run()
	assert.NoError(t, err)
	reg, err := presence.NewRedisRegistry(zap.NewNop(), config.RedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        regRedis.Addr(),
		Timeout:     500 * time.Millisecond,
	})
	assert.NoError(t, err)
	regRedis.Close()

	p := newTestProcess(t, ctx, reg, mr.Addr())

	ws, resp, err := dial(t, p, mintToken(t, 1, "alice@example.com"))
	assert.Nil(t, ws)
	assert.Error(t, err)
	if assert.NotNil(t, resp) {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
	assert.Zero(t, p.gateway.connCount())
}

func TestBroadcast_FanOutAcrossProcessesWithExclusion(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One shared registry, two gateway processes.
	reg, err := presence.NewRedisRegistry(zap.NewNop(), config.RedisConfig{
		ClusterType: cnst.RedisClusterTypeSingle,
		Addr:        mr.Addr(),
		Timeout:     2 * time.Second,
	})
	assert.NoError(t, err)
	defer func() { _ = reg.Close() }()

	p1 := newTestProcess(t, ctx, reg, mr.Addr())
	p2 := newTestProcess(t, ctx, reg, mr.Addr())

	// User A holds a1 on process 1; user B holds b1 on process 1 and b2 on
	// process 2.
	a1, _, err := dial(t, p1, mintToken(t, 1, "alice@example.com"))
	assert.NoError(t, err)
	b1, _, err := dial(t, p1, mintToken(t, 2, "bob@example.com"))
	assert.NoError(t, err)
	b2, _, err := dial(t, p2, mintToken(t, 2, "bob@example.com"))
	assert.NoError(t, err)

	waitForMembers(t, reg, 1, 1)
	waitForMembers(t, reg, 2, 2)

	// User A shares a video via process 1.
	publisher := notify.NewPublisher(zap.NewNop(), reg, p1.gateway,
		metrics.New(config.MetricsConfig{Namespace: "test"}))
	publisher.PublishSharedVideo(ctx, notify.SharedVideoPayload{
		YoutubeID:   "dQw4w9WgXcQ",
		Title:       "Some video",
		SharerEmail: "alice@example.com",
	}, 1)

	// Both of B's connections receive exactly one event.
	for name, ws := range map[string]*websocket.Conn{"b1": b1, "b2": b2} {
		evt, err := readEvent(t, ws, 2*time.Second)
		assert.NoError(t, err, name)
		if assert.NotNil(t, evt, name) {
			assert.Equal(t, cnst.EventShareVideo, evt.Name)
			assert.JSONEq(t,
				`{"youtubeId":"dQw4w9WgXcQ","title":"Some video","sharerEmail":"alice@example.com"}`,
				string(evt.Payload), name)
		}
		// No second delivery.
		_, err = readEvent(t, ws, 300*time.Millisecond)
		assert.Error(t, err, name)
	}

	// The sharer's own connection receives nothing.
	_, err = readEvent(t, a1, 300*time.Millisecond)
	assert.Error(t, err)
}

func TestBroadcast_RelayDownDegradesToLocal(t *testing.T) {
	relayRedis, err := miniredis.Run()
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := presence.NewMemoryRegistry()
	p := newTestProcess(t, ctx, reg, relayRedis.Addr())

	// Relay dies after startup.
	relayRedis.Close()

	b1, _, err := dial(t, p, mintToken(t, 2, "bob@example.com"))
	assert.NoError(t, err)

	evt, err := notify.NewSharedVideoEvent(notify.SharedVideoPayload{YoutubeID: "x", Title: "t"})
	assert.NoError(t, err)
	p.gateway.Broadcast(ctx, evt, nil)

	// Local delivery still works.
	got, err := readEvent(t, b1, 2*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, cnst.EventShareVideo, got.Name)
}

func TestShutdown_ClosesAndDeregisters(t *testing.T) {
	mr, err := miniredis.Run()
	assert.NoError(t, err)
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := presence.NewMemoryRegistry()
	p := newTestProcess(t, ctx, reg, mr.Addr())

	ws, _, err := dial(t, p, mintToken(t, 1, "alice@example.com"))
	assert.NoError(t, err)
	_ = ws
	waitForMembers(t, reg, 1, 1)

	p.gateway.Shutdown(ctx)

	assert.Zero(t, p.gateway.connCount())
	online, err := reg.IsOnline(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, online)
}
