package sim

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/combatsim/internal/loadout"
	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
	"github.com/louisbranch/combatsim/internal/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeBatchStore struct {
	batches map[string]storage.BatchRecord
	putErr  error
}

func (s *fakeBatchStore) PutBatch(_ context.Context, batch storage.BatchRecord) error {
	if s.putErr != nil {
		return s.putErr
	}
	if s.batches == nil {
		s.batches = map[string]storage.BatchRecord{}
	}
	s.batches[batch.ID] = batch
	return nil
}

func (s *fakeBatchStore) GetBatch(_ context.Context, id string) (storage.BatchRecord, error) {
	batch, ok := s.batches[id]
	if !ok {
		return storage.BatchRecord{}, storage.ErrNotFound
	}
	return batch, nil
}

func (s *fakeBatchStore) ListBatches(context.Context, storage.BatchQuery) (storage.BatchPage, error) {
	return storage.BatchPage{}, nil
}

func laserConfig() loadout.Config {
	seed := int64(7)
	return loadout.Config{
		Defender: "Drone",
		Weapons:  []string{"Lgt. Laser"},
		Trials:   200,
		Seed:     &seed,
	}
}

func newTestRunner(t *testing.T, store storage.BatchStore) *Runner {
	t.Helper()
	runner, err := NewRunner(nil, store)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	runner.Workers = 2
	runner.newID = func() (string, error) { return "batch-1", nil }
	runner.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return runner
}

func TestRunnerRun(t *testing.T) {
	runner := newTestRunner(t, nil)
	out, err := runner.Run(context.Background(), laserConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Result.Trials != 200 || out.Result.Requested != 200 {
		t.Fatalf("trials = %d of %d", out.Result.Trials, out.Result.Requested)
	}
	if out.Summary.Defender != "Drone" || out.Summary.Name != "Lgt. Laser vs Drone" {
		t.Fatalf("summary = %+v", out.Summary)
	}
	if out.BatchID != "" {
		t.Fatalf("batch id = %q, want empty without a store", out.BatchID)
	}
}

func TestRunnerRunIsDeterministicWithSeed(t *testing.T) {
	runner := newTestRunner(t, nil)
	first, err := runner.Run(context.Background(), laserConfig())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	runner.Workers = 5
	second, err := runner.Run(context.Background(), laserConfig())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(first.Result.KillVolleys.Counts(), second.Result.KillVolleys.Counts()) {
		t.Fatal("seeded runs produced different volley histograms")
	}
	if !reflect.DeepEqual(first.Result.KillTUs.Counts(), second.Result.KillTUs.Counts()) {
		t.Fatal("seeded runs produced different TU histograms")
	}
}

func TestRunnerRunPersists(t *testing.T) {
	store := &fakeBatchStore{}
	runner := newTestRunner(t, store)
	out, err := runner.Run(context.Background(), laserConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.BatchID != "batch-1" {
		t.Fatalf("batch id = %q", out.BatchID)
	}
	record := store.batches["batch-1"]
	if record.Defender != "Drone" || record.Trials != 200 {
		t.Fatalf("record = %+v", record)
	}
	cfg, err := DecodeConfig(record.Config)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Defender != "Drone" || cfg.Seed == nil || *cfg.Seed != 7 {
		t.Fatalf("stored config = %+v", cfg)
	}
	restored := ResultFromRecord(record)
	if !reflect.DeepEqual(restored.KillVolleys.Counts(), out.Result.KillVolleys.Counts()) {
		t.Fatal("restored histogram differs")
	}
}

func TestRunnerRunRecordsDrawnSeed(t *testing.T) {
	store := &fakeBatchStore{}
	runner := newTestRunner(t, store)
	cfg := laserConfig()
	cfg.Seed = nil
	out, err := runner.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, err := DecodeConfig(store.batches[out.BatchID].Config)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if stored.Seed == nil {
		t.Fatal("stored config has no seed")
	}

	replay, err := newTestRunner(t, nil).Run(context.Background(), stored)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !reflect.DeepEqual(replay.Result.KillVolleys.Counts(), out.Result.KillVolleys.Counts()) {
		t.Fatal("replayed histogram differs")
	}
}

func TestRunnerRunPersistError(t *testing.T) {
	runner := newTestRunner(t, &fakeBatchStore{putErr: errors.New("disk full")})
	if _, err := runner.Run(context.Background(), laserConfig()); err == nil {
		t.Fatal("expected persist error")
	}
}

func TestRunnerRunInvalidLoadout(t *testing.T) {
	runner := newTestRunner(t, nil)
	_, err := runner.Run(context.Background(), loadout.Config{Defender: "Drone"})
	if apperrors.GetCode(err) != apperrors.CodeLoadoutNoWeapons {
		t.Fatalf("code = %s, err = %v", apperrors.GetCode(err), err)
	}
}

func TestRunnerRunCancelled(t *testing.T) {
	store := &fakeBatchStore{}
	runner := newTestRunner(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := runner.Run(ctx, laserConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Result.Cancelled || out.Result.Trials != 0 {
		t.Fatalf("result = %+v", out.Result)
	}
	if !store.batches["batch-1"].Cancelled {
		t.Fatal("cancelled batch should still be persisted")
	}
}

func TestRunnerRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	runner := newTestRunner(t, nil)
	runner.tracer = provider.Tracer(tracerName)
	if _, err := runner.Run(context.Background(), laserConfig()); err != nil {
		t.Fatalf("run: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name() != "battle.batch" {
		t.Fatalf("span name = %q", spans[0].Name())
	}
	attrs := map[string]bool{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = true
	}
	for _, key := range []string{"battle.defender", "battle.trials", "battle.completed"} {
		if !attrs[key] {
			t.Fatalf("missing attribute %s", key)
		}
	}
}

func TestDecodeConfigErrors(t *testing.T) {
	if _, err := DecodeConfig(nil); err == nil {
		t.Fatal("expected error for empty config")
	}
	if _, err := DecodeConfig([]byte("{")); err == nil {
		t.Fatal("expected error for bad json")
	}
}
