// Package mcp parses MCP command flags and serves the simulation tools.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/combatsim/internal/platform/cmd"
	mcpservice "github.com/louisbranch/combatsim/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath      string `env:"COMBATSIM_MCP_DB_PATH"`
	CatalogPath string `env:"COMBATSIM_CATALOG_PATH"`
	Workers     int    `env:"COMBATSIM_WORKERS"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database for stored batches and queued jobs (empty disables them)")
		fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog overlaid on the built-in catalog")
		fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent trials per batch (0 uses all CPUs)")
	})
}

// Run serves MCP over stdio.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			DBPath:      cfg.DBPath,
			CatalogPath: cfg.CatalogPath,
			Workers:     cfg.Workers,
		})
	})
}
