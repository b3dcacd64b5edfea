package domain

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/combatsim/internal/catalog"
	"github.com/louisbranch/combatsim/internal/loadout"
	"github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage"
	"github.com/louisbranch/combatsim/internal/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func droneLoadout() loadout.Config {
	seed := int64(11)
	return loadout.Config{Defender: "Drone", Weapons: []string{"Lgt. Laser"}, Trials: 100, Seed: &seed}
}

func TestSimulateBattleHandler(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		runner, store := newRunner(t)
		handler := SimulateBattleHandler(runner)
		toolResult, result, err := handler(context.Background(), nil, SimulateBattleInput{Loadout: droneLoadout()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Trials != 100 || result.Defender != "Drone" || result.BatchID != "" {
			t.Fatalf("result = %+v", result)
		}
		if len(result.KillChances) == 0 {
			t.Fatal("expected kill chances")
		}
		text, ok := toolResult.Content[0].(*mcp.TextContent)
		if !ok || !strings.Contains(text.Text, "Trials: 100 of 100") {
			t.Fatalf("content = %+v", toolResult.Content)
		}
		page, err := store.ListBatches(context.Background(), storage.BatchQuery{})
		if err != nil {
			t.Fatalf("list batches: %v", err)
		}
		if len(page.Batches) != 0 {
			t.Fatalf("inline run persisted %d batches", len(page.Batches))
		}
	})

	t.Run("persist", func(t *testing.T) {
		runner, store := newRunner(t)
		handler := SimulateBattleHandler(runner)
		_, result, err := handler(context.Background(), nil, SimulateBattleInput{Loadout: droneLoadout(), Persist: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.BatchID == "" {
			t.Fatal("expected batch id")
		}
		if _, err := store.GetBatch(context.Background(), result.BatchID); err != nil {
			t.Fatalf("get batch: %v", err)
		}
	})

	t.Run("persist without store", func(t *testing.T) {
		runner, err := sim.NewRunner(nil, nil)
		if err != nil {
			t.Fatalf("new runner: %v", err)
		}
		_, _, err = SimulateBattleHandler(runner)(context.Background(), nil, SimulateBattleInput{Loadout: droneLoadout(), Persist: true})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid loadout", func(t *testing.T) {
		runner, _ := newRunner(t)
		_, _, err := SimulateBattleHandler(runner)(context.Background(), nil, SimulateBattleInput{Loadout: loadout.Config{Defender: "Drone"}})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("too many trials", func(t *testing.T) {
		runner, _ := newRunner(t)
		cfg := droneLoadout()
		cfg.Trials = maxToolTrials + 1
		_, _, err := SimulateBattleHandler(runner)(context.Background(), nil, SimulateBattleInput{Loadout: cfg})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestEnqueueAndGetJobHandlers(t *testing.T) {
	_, store := newRunner(t)
	cat := mustCatalog(t)

	_, queued, err := EnqueueBattleHandler(cat, store)(context.Background(), nil, EnqueueBattleInput{Loadout: droneLoadout()})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.JobID == "" || queued.Status != "queued" {
		t.Fatalf("queued = %+v", queued)
	}

	_, job, err := GetJobHandler(store)(context.Background(), nil, GetJobInput{JobID: queued.JobID})
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != "queued" || job.UpdatedAt == "" {
		t.Fatalf("job = %+v", job)
	}

	if _, _, err := GetJobHandler(store)(context.Background(), nil, GetJobInput{JobID: "missing"}); err == nil {
		t.Fatal("expected error for missing job")
	}
	if _, _, err := GetJobHandler(store)(context.Background(), nil, GetJobInput{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestEnqueueBattleHandler_RejectsInvalidLoadout(t *testing.T) {
	_, store := newRunner(t)
	_, _, err := EnqueueBattleHandler(mustCatalog(t), store)(context.Background(), nil, EnqueueBattleInput{
		Loadout: loadout.Config{Defender: "Nobody", Weapons: []string{"Lgt. Laser"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok, err := store.ClaimNextJob(context.Background(), time.Now(), nil); err != nil || ok {
		t.Fatalf("invalid loadout was queued: ok=%v err=%v", ok, err)
	}
}

func TestGetAndListBatchHandlers(t *testing.T) {
	runner, store := newRunner(t)
	for range 3 {
		if _, _, err := SimulateBattleHandler(runner)(context.Background(), nil, SimulateBattleInput{Loadout: droneLoadout(), Persist: true}); err != nil {
			t.Fatalf("simulate: %v", err)
		}
	}

	_, page, err := ListBatchesHandler(store)(context.Background(), nil, ListBatchesInput{PageSize: 2})
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(page.Batches) != 2 || page.NextPageToken == "" {
		t.Fatalf("page = %+v", page)
	}

	first := page.Batches[0]
	toolResult, batch, err := GetBatchHandler(store)(context.Background(), nil, GetBatchInput{BatchID: first.BatchID})
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.BatchID != first.BatchID || batch.Trials != 100 || batch.CreatedAt == "" {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.Volleys.Median == 0 {
		t.Fatalf("volleys = %+v", batch.Volleys)
	}
	if len(toolResult.Content) != 1 {
		t.Fatalf("content = %+v", toolResult.Content)
	}

	_, filtered, err := ListBatchesHandler(store)(context.Background(), nil, ListBatchesInput{Filter: `defender = "Behemoth"`})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered.Batches) != 0 {
		t.Fatalf("filtered = %+v", filtered)
	}

	if _, _, err := ListBatchesHandler(store)(context.Background(), nil, ListBatchesInput{Filter: `bogus = 1`}); err == nil {
		t.Fatal("expected filter error")
	}
	if _, _, err := GetBatchHandler(store)(context.Background(), nil, GetBatchInput{BatchID: "missing"}); err == nil {
		t.Fatal("expected error for missing batch")
	}
}

func TestListBotsHandler(t *testing.T) {
	cat := mustCatalog(t)
	_, result, err := ListBotsHandler(cat)(context.Background(), nil, ListBotsInput{})
	if err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if len(result.Bots) != len(cat.BotNames()) || len(result.Weapons) != len(cat.WeaponNames()) {
		t.Fatalf("result = %+v", result)
	}
	var found bool
	for _, bot := range result.Bots {
		if bot.Name == "Y-45 Defender" {
			found = true
			if bot.Movement != "treads" || len(bot.Parts) == 0 {
				t.Fatalf("defender = %+v", bot)
			}
		}
	}
	if !found {
		t.Fatal("expected Y-45 Defender in bot list")
	}

	if _, _, err := ListBotsHandler(nil)(context.Background(), nil, ListBotsInput{}); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	return cat
}

func newRunner(t *testing.T) (*sim.Runner, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "mcp.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	runner, err := sim.NewRunner(mustCatalog(t), store)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	runner.Workers = 2
	return runner, store
}
