package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/combatsim/internal/platform/grpc"
	"github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage/sqlite"
)

// RuntimeConfig controls worker startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port         int
	DBPath       string
	CatalogPath  string
	PollInterval time.Duration
	// Workers caps concurrent trials within one batch.
	Workers int
}

const (
	defaultWorkerPort = 8089
	defaultWorkerDB   = "data/combatsim.db"
	// healthService is reported SERVING once the queue loop starts.
	healthService = "worker.runtime"
)

// Run starts worker runtime dependencies and the background processing loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worker storage dir: %w", err)
		}
	}

	cat, err := sim.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open worker sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close worker sqlite store: %v", closeErr)
		}
	}()

	runner, err := sim.NewRunner(cat, store)
	if err != nil {
		return err
	}
	runner.Workers = cfg.Workers
	worker := NewWorker(store, runner, cfg.PollInterval)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}

	healthServer := platformgrpc.NewHealthServer()
	healthServer.SetServing("", true)
	healthServer.SetServing(healthService, true)

	serveCtx, stopServe := context.WithCancel(ctx)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- healthServer.Serve(serveCtx, listener)
	}()
	defer func() {
		stopServe()
		if err := <-serveErr; err != nil {
			log.Printf("worker health server: %v", err)
		}
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	err = worker.Run(ctx)
	healthServer.SetServing(healthService, false)
	return err
}
