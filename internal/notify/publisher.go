package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/presence"
	"github.com/clipcast/clipcast/pkg/metrics"
)

// Broadcaster is the gateway-side fan-out primitive.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt *Event, exclude []string)
}

// Publisher is the application-level entry point for fan-out: the
// video-sharing use case calls it after a share is durably persisted.
// Pure orchestration, no state of its own.
type Publisher struct {
	logger      *zap.Logger
	registry    presence.Registry
	broadcaster Broadcaster
	metrics     *metrics.Metrics
}

// NewPublisher creates a new notification publisher
func NewPublisher(logger *zap.Logger, registry presence.Registry, broadcaster Broadcaster, m *metrics.Metrics) *Publisher {
	return &Publisher{
		logger:      logger.Named("notify"),
		registry:    registry,
		broadcaster: broadcaster,
		metrics:     m,
	}
}

// PublishSharedVideo fans a share_video event out to everyone except the
// sharer's own live connections. Notifications are best-effort: a failure
// here is logged and counted, never surfaced to the share action.
func (p *Publisher) PublishSharedVideo(ctx context.Context, payload SharedVideoPayload, originUserID int64) {
	evt, err := NewSharedVideoEvent(payload)
	if err != nil {
		p.logger.Error("failed to build event", zap.Error(err))
		return
	}

	exclude, err := p.registry.Members(ctx, originUserID)
	if err != nil {
		p.logger.Warn("presence lookup failed, dropping notification",
			zap.Int64("origin_user_id", originUserID),
			zap.Error(err))
		p.metrics.NotificationDropped(evt.Name, "registry_unavailable")
		p.metrics.RegistryError("members")
		return
	}

	p.logger.Debug("publishing event",
		zap.String("event", evt.Name),
		zap.Int64("origin_user_id", originUserID),
		zap.Int("excluded", len(exclude)))

	p.broadcaster.Broadcast(ctx, evt, exclude)
}
