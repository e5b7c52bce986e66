package relay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/common/config"
)

// NewRelay creates a cross-process relay based on configuration
func NewRelay(logger *zap.Logger, cfg *config.RelayConfig) (Relay, error) {
	logger.Info("Initializing cross-process relay",
		zap.String("type", cfg.Type),
		zap.String("channel", cfg.Channel))
	switch cfg.Type {
	case "local":
		return NewLocalRelay(), nil
	case "redis":
		return NewRedisRelay(logger, *cfg)
	default:
		return nil, fmt.Errorf("unsupported relay type: %s", cfg.Type)
	}
}
