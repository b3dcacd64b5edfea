// Package sim runs configured battles and records their results. The batch
// CLI, the queue worker and the MCP server all run batches through it.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/combatsim/internal/battle"
	"github.com/louisbranch/combatsim/internal/catalog"
	"github.com/louisbranch/combatsim/internal/loadout"
	"github.com/louisbranch/combatsim/internal/platform/id"
	"github.com/louisbranch/combatsim/internal/random"
	"github.com/louisbranch/combatsim/internal/report"
	"github.com/louisbranch/combatsim/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/combatsim/internal/services/sim"

// Runner builds loadouts against a catalog and runs them.
type Runner struct {
	Catalog *catalog.Catalog
	// Store persists results when set.
	Store storage.BatchStore
	// Workers caps concurrent trials per batch. Zero uses GOMAXPROCS.
	Workers int
	// Progress receives completed trial counts while a batch runs.
	Progress func(completed int)

	tracer trace.Tracer
	now    func() time.Time
	newID  func() (string, error)
}

// NewRunner returns a runner over cat. A nil cat uses the embedded catalog.
func NewRunner(cat *catalog.Catalog, store storage.BatchStore) (*Runner, error) {
	if cat == nil {
		var err error
		cat, err = catalog.Default()
		if err != nil {
			return nil, err
		}
	}
	return &Runner{Catalog: cat, Store: store}, nil
}

// Outcome is a finished batch.
type Outcome struct {
	Plan    loadout.Plan
	Result  battle.BatchResult
	Summary report.Summary
	// BatchID is set when the batch was persisted.
	BatchID string
}

// Run builds cfg and runs it. When the runner has a store, the result is
// persisted even if ctx was cancelled part way, and an unseeded config is
// given a drawn seed so the stored batch can be replayed.
func (r *Runner) Run(ctx context.Context, cfg loadout.Config) (Outcome, error) {
	if r == nil || r.Catalog == nil {
		return Outcome{}, fmt.Errorf("runner catalog is not configured")
	}
	if r.Store != nil && cfg.Seed == nil {
		seed, err := random.Resolve(nil)
		if err != nil {
			return Outcome{}, err
		}
		cfg.Seed = &seed
	}
	plan, err := loadout.Build(r.Catalog, cfg)
	if err != nil {
		return Outcome{}, err
	}
	result, err := r.runBatch(ctx, plan)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Plan:    plan,
		Result:  result,
		Summary: report.Summarize(plan.Name, plan.Defender.Name, plan.Offense, result),
	}
	if r.Store == nil {
		return out, nil
	}
	record, err := r.Record(cfg, plan, result)
	if err != nil {
		return Outcome{}, err
	}
	// The batch's own context may already be cancelled; the partial result is
	// still worth keeping.
	if err := r.Store.PutBatch(context.WithoutCancel(ctx), record); err != nil {
		return Outcome{}, fmt.Errorf("persist batch: %w", err)
	}
	out.BatchID = record.ID
	return out, nil
}

func (r *Runner) runBatch(ctx context.Context, plan loadout.Plan) (battle.BatchResult, error) {
	tracer := r.tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "battle.batch", trace.WithAttributes(
		attribute.String("battle.name", plan.Name),
		attribute.String("battle.defender", plan.Defender.Name),
		attribute.Int("battle.trials", plan.Trials),
		attribute.Int("battle.workers", r.Workers),
		attribute.Bool("battle.seeded", plan.Seed != nil),
	))
	defer span.End()

	result, err := battle.RunBatch(ctx, battle.BatchRequest{
		Defender: plan.Defender,
		Offense:  plan.Offense,
		Trials:   plan.Trials,
		Workers:  r.Workers,
		Seed:     plan.Seed,
		Progress: r.Progress,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return battle.BatchResult{}, err
	}
	span.SetAttributes(
		attribute.Int("battle.completed", result.Trials),
		attribute.Int("battle.corruption_kills", result.CorruptionKills),
		attribute.Bool("battle.exceeded_max_volleys", result.ExceededMaxVolleys),
		attribute.Bool("battle.cancelled", result.Cancelled),
	)
	if result.ExceededMaxVolleys {
		span.SetStatus(codes.Error, battle.ErrMaxVolleysExceeded.Error())
	}
	return result, nil
}

// Record converts a finished batch to its stored form.
func (r *Runner) Record(cfg loadout.Config, plan loadout.Plan, result battle.BatchResult) (storage.BatchRecord, error) {
	newID := id.NewID
	now := time.Now
	if r != nil && r.newID != nil {
		newID = r.newID
	}
	if r != nil && r.now != nil {
		now = r.now
	}

	batchID, err := newID()
	if err != nil {
		return storage.BatchRecord{}, err
	}
	config, err := json.Marshal(cfg)
	if err != nil {
		return storage.BatchRecord{}, fmt.Errorf("encode config: %w", err)
	}
	return storage.BatchRecord{
		ID:                 batchID,
		Name:               plan.Name,
		Defender:           plan.Defender.Name,
		Requested:          result.Requested,
		Trials:             result.Trials,
		CorruptionKills:    result.CorruptionKills,
		ExceededMaxVolleys: result.ExceededMaxVolleys,
		Cancelled:          result.Cancelled,
		Volleys:            result.KillVolleys.Counts(),
		TUs:                result.KillTUs.Counts(),
		Config:             config,
		CreatedAt:          now().UTC(),
	}, nil
}

// DecodeConfig reads a JSON encoded loadout, as stored on jobs and batches.
func DecodeConfig(data []byte) (loadout.Config, error) {
	var cfg loadout.Config
	if strings.TrimSpace(string(data)) == "" {
		return cfg, fmt.Errorf("config is empty")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// ResultFromRecord rebuilds the batch result held by a stored record.
func ResultFromRecord(record storage.BatchRecord) battle.BatchResult {
	return battle.BatchResult{
		KillVolleys:        battle.HistogramFromCounts(record.Volleys),
		KillTUs:            battle.HistogramFromCounts(record.TUs),
		Requested:          record.Requested,
		Trials:             record.Trials,
		CorruptionKills:    record.CorruptionKills,
		ExceededMaxVolleys: record.ExceededMaxVolleys,
		Cancelled:          record.Cancelled,
	}
}
