package zarr

import "runtime"

// SaveOption configures Array.Save.
type SaveOption func(*saveConfig)

type saveConfig struct {
	workers int
}

func newSaveConfig(opts []SaveOption) saveConfig {
	cfg := saveConfig{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithWorkers sets the number of concurrent chunk writers. Values below 1
// fall back to a single writer.
func WithWorkers(n int) SaveOption {
	return func(cfg *saveConfig) {
		cfg.workers = n
	}
}
