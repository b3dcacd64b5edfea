// Package cmd holds the startup steps shared by the combatsim commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/combatsim/internal/platform/config"
	"github.com/louisbranch/combatsim/internal/platform/otel"
)

const otelShutdownTimeout = 5 * time.Second

// Service names, used for telemetry resources.
const (
	ServiceMCP    = "mcp"
	ServiceSim    = "sim"
	ServiceWorker = "worker"
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Load reads T from the environment, lets bind register flags defaulting to
// those values, then parses args over them. Flags win over the environment.
func Load[T any](fs *flag.FlagSet, args []string, bind func(*flag.FlagSet, *T)) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag parser is required")
	}
	if err := ParseConfig(&cfg); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(fs, &cfg)
	}
	if err := ParseArgs(fs, args); err != nil {
		var zero T
		return zero, err
	}
	return cfg, nil
}

// RunWithTelemetry installs the tracer provider for service, runs run and
// flushes pending spans before returning run's error.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		// ctx is usually cancelled by now.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
