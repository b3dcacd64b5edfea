// Package sim parses batch CLI flags, runs one loadout and prints the result.
package sim

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/louisbranch/combatsim/internal/loadout"
	entrypoint "github.com/louisbranch/combatsim/internal/platform/cmd"
	"github.com/louisbranch/combatsim/internal/report"
	"github.com/louisbranch/combatsim/internal/scenario"
	simservice "github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage"
	"github.com/louisbranch/combatsim/internal/storage/sqlite"
)

// Config holds batch command configuration.
type Config struct {
	LoadoutPath  string `env:"COMBATSIM_LOADOUT"`
	ScenarioPath string `env:"COMBATSIM_SCENARIO"`
	CatalogPath  string `env:"COMBATSIM_CATALOG_PATH"`
	Trials       int    `env:"COMBATSIM_TRIALS"`
	Workers      int    `env:"COMBATSIM_WORKERS"`
	// Seed is kept as text so an unset seed stays distinguishable from 0.
	Seed     string `env:"COMBATSIM_SEED"`
	DBPath   string `env:"COMBATSIM_DB_PATH"`
	View     bool   `env:"COMBATSIM_VIEW"`
	Lang     string `env:"COMBATSIM_LANG" envDefault:"en"`
	Progress bool   `env:"COMBATSIM_PROGRESS"`
}

// newScreen opens the terminal for the histogram viewer.
var newScreen = tcell.NewScreen

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.Load(fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.LoadoutPath, "config", cfg.LoadoutPath, "path to a YAML loadout")
		fs.StringVar(&cfg.ScenarioPath, "scenario", cfg.ScenarioPath, "path to a Lua scenario")
		fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "YAML catalog overlaid on the built-in catalog")
		fs.IntVar(&cfg.Trials, "trials", cfg.Trials, "number of trials (overrides the loadout)")
		fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent trials (0 uses all CPUs)")
		fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "seed for a reproducible batch (overrides the loadout)")
		fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database to store the batch in")
		fs.BoolVar(&cfg.View, "view", cfg.View, "show the kill histogram in the terminal")
		fs.StringVar(&cfg.Lang, "lang", cfg.Lang, "language for number formatting")
		fs.BoolVar(&cfg.Progress, "progress", cfg.Progress, "report completed trials while running")
	})
}

// Run executes the batch command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	loadoutCfg, err := readLoadout(cfg)
	if err != nil {
		return err
	}

	cat, err := simservice.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	var batches storage.BatchStore
	if path := strings.TrimSpace(cfg.DBPath); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close sqlite store: %v", closeErr)
			}
		}()
		batches = store
	}

	runner, err := simservice.NewRunner(cat, batches)
	if err != nil {
		return err
	}
	runner.Workers = cfg.Workers
	if cfg.Progress {
		logger := log.New(errOut, "", 0)
		runner.Progress = func(completed int) {
			logger.Printf("%d trials completed", completed)
		}
	}

	var outcome simservice.Outcome
	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSim, func(ctx context.Context) error {
		var runErr error
		outcome, runErr = runner.Run(ctx, loadoutCfg)
		return runErr
	})
	if err != nil {
		return err
	}

	if err := report.WriteText(out, report.ParseLanguage(cfg.Lang), outcome.Summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if outcome.BatchID != "" {
		fmt.Fprintf(out, "Stored batch %s\n", outcome.BatchID)
	}
	if cfg.View && outcome.Result.Trials > 0 {
		return view(outcome)
	}
	return nil
}

func readLoadout(cfg Config) (loadout.Config, error) {
	loadoutPath := strings.TrimSpace(cfg.LoadoutPath)
	scenarioPath := strings.TrimSpace(cfg.ScenarioPath)

	var (
		result loadout.Config
		err    error
	)
	switch {
	case loadoutPath != "" && scenarioPath != "":
		return loadout.Config{}, errors.New("use either -config or -scenario, not both")
	case loadoutPath != "":
		result, err = loadout.Load(loadoutPath)
	case scenarioPath != "":
		var s *scenario.Scenario
		s, err = scenario.LoadFile(scenarioPath)
		if s != nil {
			result = s.Config
		}
	default:
		return loadout.Config{}, errors.New("a -config or -scenario path is required")
	}
	if err != nil {
		return loadout.Config{}, err
	}

	if cfg.Trials != 0 {
		result.Trials = cfg.Trials
	}
	if seed := strings.TrimSpace(cfg.Seed); seed != "" {
		value, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return loadout.Config{}, fmt.Errorf("invalid seed %q: %w", seed, err)
		}
		result.Seed = &value
	}
	return result, nil
}

func view(outcome simservice.Outcome) error {
	screen, err := newScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()
	report.View(screen, report.Chart{
		Title:   outcome.Plan.Name,
		Volleys: outcome.Result.KillVolleys,
		TUs:     outcome.Result.KillTUs,
	})
	return nil
}
