// Package worker parses worker command flags and launches the worker runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/combatsim/internal/platform/cmd"
	workerserver "github.com/louisbranch/combatsim/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	Port         int           `env:"COMBATSIM_WORKER_PORT" envDefault:"8089"`
	DBPath       string        `env:"COMBATSIM_WORKER_DB_PATH" envDefault:"data/combatsim.db"`
	CatalogPath  string        `env:"COMBATSIM_CATALOG_PATH"`
	PollInterval time.Duration `env:"COMBATSIM_WORKER_POLL_INTERVAL" envDefault:"2s"`
	Workers      int           `env:"COMBATSIM_WORKERS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
		fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database holding jobs and batches")
		fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog overlaid on the built-in catalog")
		fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Job queue poll interval")
		fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent trials per batch (0 uses all CPUs)")
	})
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			Port:         cfg.Port,
			DBPath:       cfg.DBPath,
			CatalogPath:  cfg.CatalogPath,
			PollInterval: cfg.PollInterval,
			Workers:      cfg.Workers,
		})
	})
}
