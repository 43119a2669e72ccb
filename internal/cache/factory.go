// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/pkg/types"
)

const defaultMaxItems = 4096

// FromConfig builds a Cache with the configured backend. An unreachable
// redis instance falls back to the in-process backend with a warning; the
// cache is a performance layer and must never block startup.
func FromConfig(cfg types.CacheConfig, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxItems := cfg.MaxItems
	if maxItems == 0 {
		maxItems = defaultMaxItems
	}

	if cfg.Backend == types.CacheRedis && cfg.RedisURL != "" {
		r, err := NewRedis(cfg.RedisURL, logger)
		if err == nil {
			return New(r, logger)
		}
		logger.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
	}

	return New(NewMemory(maxItems), logger)
}
