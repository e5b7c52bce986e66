package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/clipcast/clipcast/internal/presence"
	"github.com/clipcast/clipcast/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type capturingBroadcaster struct {
	calls   int
	event   *Event
	exclude []string
}

func (b *capturingBroadcaster) Broadcast(_ context.Context, evt *Event, exclude []string) {
	b.calls++
	b.event = evt
	b.exclude = exclude
}

type failingRegistry struct {
	presence.Registry
}

func (failingRegistry) Members(context.Context, int64) ([]string, error) {
	return nil, errors.New("boom: " + presence.ErrRegistryUnavailable.Error())
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(config.MetricsConfig{Namespace: "test"})
}

func TestPublisher_ExcludesOriginConnections(t *testing.T) {
	ctx := context.Background()
	reg := presence.NewMemoryRegistry()
	assert.NoError(t, reg.Add(ctx, 1, "a1"))
	assert.NoError(t, reg.Add(ctx, 1, "a2"))
	assert.NoError(t, reg.Add(ctx, 2, "b1"))

	b := &capturingBroadcaster{}
	p := NewPublisher(zap.NewNop(), reg, b, newTestMetrics())

	payload := SharedVideoPayload{
		YoutubeID:   "dQw4w9WgXcQ",
		Title:       "Some video",
		SharerEmail: "alice@example.com",
	}
	p.PublishSharedVideo(ctx, payload, 1)

	assert.Equal(t, 1, b.calls)
	if assert.NotNil(t, b.event) {
		assert.Equal(t, "share_video", b.event.Name)
		assert.JSONEq(t,
			`{"youtubeId":"dQw4w9WgXcQ","title":"Some video","sharerEmail":"alice@example.com"}`,
			string(b.event.Payload))
	}
	// Only the origin user's own connections are excluded.
	assert.ElementsMatch(t, []string{"a1", "a2"}, b.exclude)
}

func TestPublisher_OfflineOriginExcludesNothing(t *testing.T) {
	b := &capturingBroadcaster{}
	p := NewPublisher(zap.NewNop(), presence.NewMemoryRegistry(), b, newTestMetrics())

	p.PublishSharedVideo(context.Background(), SharedVideoPayload{YoutubeID: "x"}, 42)

	assert.Equal(t, 1, b.calls)
	assert.Empty(t, b.exclude)
}

func TestPublisher_RegistryFailureDropsSilently(t *testing.T) {
	b := &capturingBroadcaster{}
	p := NewPublisher(zap.NewNop(), failingRegistry{}, b, newTestMetrics())

	// Must not panic and must not broadcast; the caller never sees an error.
	p.PublishSharedVideo(context.Background(), SharedVideoPayload{YoutubeID: "x"}, 1)

	assert.Zero(t, b.calls)
}
