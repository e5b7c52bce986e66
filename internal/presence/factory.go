package presence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/clipcast/clipcast/internal/common/config"
)

// NewRegistry creates a presence registry based on configuration
func NewRegistry(logger *zap.Logger, cfg *config.PresenceConfig) (Registry, error) {
	logger.Info("Initializing presence registry", zap.String("type", cfg.Type))
	switch cfg.Type {
	case "memory":
		return NewMemoryRegistry(), nil
	case "redis":
		return NewRedisRegistry(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported presence registry type: %s", cfg.Type)
	}
}
