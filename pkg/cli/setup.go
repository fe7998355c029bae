package cli

import (
	"fmt"
	"io"

	"github.com/skinklang/skink"
	"github.com/skinklang/skink/internal/cache"
)

// newInterp builds an interpreter from the loaded configuration. The
// returned cleanup closes the chunk store when one was opened and must be
// called, typically via defer.
func newInterp(out io.Writer, cfg *Config) (*skink.Interp, func(), error) {
	opts := []skink.Option{
		skink.WithOutput(out),
		skink.WithLogger(cfg.Logger()),
		skink.WithFormat(cfg.BytecodeFormat()),
	}
	if len(cfg.SearchPath) > 0 {
		opts = append(opts, skink.WithSearchPath(cfg.SearchPath...))
	}

	cleanup := func() {}
	if cfg.Cache {
		store, err := cache.Open(cfg.ResolvedCachePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening chunk cache: %w", err)
		}
		opts = append(opts, skink.WithChunkCache(store))
		cleanup = func() { _ = store.Close() }
	}

	return skink.New(opts...), cleanup, nil
}
