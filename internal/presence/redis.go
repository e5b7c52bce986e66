package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/clipcast/clipcast/internal/common/cnst"
	"github.com/clipcast/clipcast/internal/common/config"
	"github.com/clipcast/clipcast/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRegistry implements Registry on a shared Redis store
type RedisRegistry struct {
	logger  *zap.Logger
	client  redis.UniversalClient
	timeout time.Duration
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry creates a new Redis-backed presence registry
func NewRedisRegistry(logger *zap.Logger, cfg config.RedisConfig) (*RedisRegistry, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	redisOptions := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		redisOptions.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		redisOptions.DB = cfg.DB
	}
	client := redis.NewUniversalClient(redisOptions)

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRegistry{
		logger:  logger.Named("presence.redis"),
		client:  client,
		timeout: cfg.Timeout,
	}, nil
}

// userKey holds one set of live connection ids per user.
func userKey(userID int64) string {
	return fmt.Sprintf("user:%d:clients", userID)
}

// Add implements Registry.Add
func (r *RedisRegistry) Add(ctx context.Context, userID int64, connID string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.client.SAdd(ctx, userKey(userID), connID).Err(); err != nil {
		return fmt.Errorf("%w: sadd: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// Remove implements Registry.Remove
func (r *RedisRegistry) Remove(ctx context.Context, userID int64, connID string) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	if err := r.client.SRem(ctx, userKey(userID), connID).Err(); err != nil {
		return fmt.Errorf("%w: srem: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// Members implements Registry.Members
func (r *RedisRegistry) Members(ctx context.Context, userID int64) ([]string, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	members, err := r.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", ErrRegistryUnavailable, err)
	}
	return members, nil
}

// IsOnline implements Registry.IsOnline
func (r *RedisRegistry) IsOnline(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	count, err := r.client.SCard(ctx, userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: scard: %v", ErrRegistryUnavailable, err)
	}
	return count > 0, nil
}

// Close releases the underlying Redis client
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// opContext bounds a single registry operation
func (r *RedisRegistry) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
