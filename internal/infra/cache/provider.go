package cache

import (
	"log/slog"

	"phonebook/config"
	"phonebook/internal/domain/service"
	"phonebook/internal/errors"
	"phonebook/internal/util"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Params defines the required parameters
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
	Redis  redis.UniversalClient `optional:"true"`
}

// NewSessionCache selects the backend named by cache.driver.
func NewSessionCache(params Params) (service.SessionCache, error) {
	switch params.Config.Cache.Driver {
	case config.CacheDriverRedis:
		if params.Redis == nil {
			return nil, errors.New("redis cache driver selected but no redis client configured")
		}
		params.Logger.Info("Session cache uses redis")

		return NewRedisSessionCache(params.Redis), nil
	case config.CacheDriverMemory:
		params.Logger.Info("Session cache uses in-process LRU",
			slog.Int("size", params.Config.Cache.Size),
			slog.String("ttl", util.FormatDuration(params.Config.Cache.TTL)),
		)

		return NewMemorySessionCache(params.Config.Cache.Size, params.Config.Cache.TTL), nil
	default:
		return nil, errors.Errorf("unknown cache driver: %s", params.Config.Cache.Driver)
	}
}
