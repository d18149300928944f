package app

import (
	"fmt"
	"io"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/config"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
)

const (
	backendFilesystem = "filesystem"
	backendSQLite     = "sqlite"
	backendRedis      = "redis"
	backendMemory     = "memory"
)

// newStore opens the configured tile store. The closer is nil for stores
// that hold no resources.
func newStore(cfg *config.Config, l logger.Logger) (source.Store, io.Closer, error) {
	maxBytes := cfg.Provider.MaxSourceBytes

	switch cfg.Store.Backend {
	case backendFilesystem, "":
		return source.NewFilesystemStore(cfg.Store.RootDir, cfg.Store.PathTemplate, maxBytes), nil, nil
	case backendSQLite:
		s, err := source.NewSQLiteStore(cfg.Store.SQLitePath, maxBytes, l)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case backendRedis:
		s, err := source.NewRedisStore(source.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
			MaxBytes: maxBytes,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case backendMemory:
		return source.NewMapStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func newRemoteSource(cfg *config.Config) *source.RemoteSource {
	if !cfg.Remote.Enabled {
		return nil
	}
	return source.NewRemoteSource(source.RemoteConfig{
		URLTemplate: cfg.Remote.URLTemplate,
		MinimumZ:    cfg.Remote.MinimumZ,
		MaximumZ:    cfg.Remote.MaximumZ,
		Timeout:     cfg.Remote.Timeout,
		RPS:         cfg.Remote.RPS,
		Burst:       cfg.Remote.Burst,
		UserAgent:   cfg.Remote.UserAgent,
		MaxBytes:    cfg.Provider.MaxSourceBytes,
	})
}
