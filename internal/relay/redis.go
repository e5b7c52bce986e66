package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clipcast/clipcast/internal/common/cnst"
	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/clipcast/clipcast/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay implements Relay over a single shared Redis pub/sub channel.
// Every gateway process subscribes to the same channel at startup.
type RedisRelay struct {
	logger  *zap.Logger
	client  redis.UniversalClient
	channel string
	origin  string
	pubsub  *redis.PubSub
}

var _ Relay = (*RedisRelay)(nil)

// NewRedisRelay creates a new Redis-backed relay
func NewRedisRelay(logger *zap.Logger, cfg config.RelayConfig) (*RedisRelay, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Redis.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	}
	if cfg.Redis.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.Redis.MasterName
	}
	if cfg.Redis.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.Redis.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRelay{
		logger:  logger.Named("relay.redis"),
		client:  client,
		channel: cfg.Channel,
		origin:  uuid.NewString(),
	}, nil
}

// Origin returns this process's relay identity
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Publish implements Relay.Publish
func (r *RedisRelay) Publish(ctx context.Context, env *Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	env.Origin = r.origin

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish relay envelope: %w", err)
	}
	return nil
}

// Subscribe implements Relay.Subscribe
func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	r.pubsub = r.client.Subscribe(ctx, r.channel)

	// Wait for the subscription to be confirmed so no envelope published
	// after Subscribe returns is missed.
	if _, err := r.pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to relay channel: %w", err)
	}

	ch := make(chan *Envelope, 16)
	go func() {
		defer close(ch)
		msgs := r.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Error("failed to unmarshal relay envelope",
						zap.Error(err),
						zap.String("payload", msg.Payload))
					continue
				}
				if env.Origin == r.origin {
					// Local half already delivered by the publisher.
					continue
				}
				select {
				case ch <- &env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close implements Relay.Close
func (r *RedisRelay) Close() error {
	if r.pubsub != nil {
		if err := r.pubsub.Close(); err != nil {
			r.logger.Warn("failed to close relay subscription", zap.Error(err))
		}
	}
	return r.client.Close()
}
