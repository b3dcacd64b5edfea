package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/combatsim/internal/catalog"
	"github.com/louisbranch/combatsim/internal/loadout"
	"github.com/louisbranch/combatsim/internal/platform/id"
	"github.com/louisbranch/combatsim/internal/report"
	"github.com/louisbranch/combatsim/internal/services/sim"
	"github.com/louisbranch/combatsim/internal/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/text/language"
)

// maxToolTrials bounds batches run inline by a tool call.
const maxToolTrials = 1_000_000

// SimulateBattleInput represents the MCP tool input for running a batch.
type SimulateBattleInput struct {
	Loadout loadout.Config `json:"loadout" jsonschema:"attacker weapons, bonuses and the defender bot to run against"`
	Persist bool           `json:"persist,omitempty" jsonschema:"store the batch so it can be fetched later"`
}

// StatsResult summarizes one kill distribution.
type StatsResult struct {
	Mean   float64 `json:"mean" jsonschema:"average value"`
	Median int     `json:"median" jsonschema:"50th percentile"`
	P90    int     `json:"p90" jsonschema:"90th percentile"`
	Min    int     `json:"min" jsonschema:"smallest value"`
	Max    int     `json:"max" jsonschema:"largest value"`
}

// KillChanceResult is the cumulative kill chance at a volley count.
type KillChanceResult struct {
	Volleys int     `json:"volleys" jsonschema:"volleys fired"`
	Percent float64 `json:"percent" jsonschema:"chance the defender is dead by then"`
}

// BatchResult represents the MCP tool output for a batch.
type BatchResult struct {
	BatchID            string             `json:"batch_id,omitempty" jsonschema:"stored batch id when persisted"`
	Name               string             `json:"name" jsonschema:"batch name"`
	Defender           string             `json:"defender" jsonschema:"defender bot name"`
	Requested          int                `json:"requested" jsonschema:"trials requested"`
	Trials             int                `json:"trials" jsonschema:"trials completed"`
	Cancelled          bool               `json:"cancelled" jsonschema:"true when the batch stopped early"`
	ExceededMaxVolleys bool               `json:"exceeded_max_volleys" jsonschema:"true when the loadout cannot kill the defender"`
	CorruptionKills    int                `json:"corruption_kills" jsonschema:"trials ended by corruption"`
	Volleys            StatsResult        `json:"volleys" jsonschema:"volleys to kill"`
	TUs                StatsResult        `json:"tus" jsonschema:"time units to kill"`
	KillChances        []KillChanceResult `json:"kill_chances,omitempty" jsonschema:"cumulative kill chance by volley"`
	CreatedAt          string             `json:"created_at,omitempty" jsonschema:"RFC3339 creation time of a stored batch"`
}

// EnqueueBattleInput represents the MCP tool input for queueing a batch.
type EnqueueBattleInput struct {
	Loadout loadout.Config `json:"loadout" jsonschema:"attacker weapons, bonuses and the defender bot to run against"`
}

// JobResult represents a queued batch job.
type JobResult struct {
	JobID     string `json:"job_id" jsonschema:"job id"`
	Status    string `json:"status" jsonschema:"queued, running, succeeded, failed or cancelled"`
	Error     string `json:"error,omitempty" jsonschema:"failure reason"`
	BatchID   string `json:"batch_id,omitempty" jsonschema:"stored batch id once the job finished"`
	UpdatedAt string `json:"updated_at,omitempty" jsonschema:"RFC3339 time of the last status change"`
}

// GetJobInput represents the MCP tool input for reading a job.
type GetJobInput struct {
	JobID string `json:"job_id" jsonschema:"job id returned by enqueue_battle"`
}

// GetBatchInput represents the MCP tool input for reading a batch.
type GetBatchInput struct {
	BatchID string `json:"batch_id" jsonschema:"stored batch id"`
}

// ListBatchesInput represents the MCP tool input for listing batches.
type ListBatchesInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over name, defender, trials, exceeded, cancelled and created_at"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum batches to return"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// ListBatchesResult represents one page of stored batches.
type ListBatchesResult struct {
	Batches       []BatchResult `json:"batches" jsonschema:"stored batches, newest first"`
	NextPageToken string        `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// ListBotsInput represents the MCP tool input for browsing the catalog.
type ListBotsInput struct{}

// BotResult describes one catalog bot.
type BotResult struct {
	Name          string   `json:"name" jsonschema:"bot name"`
	Class         string   `json:"class,omitempty" jsonschema:"bot class"`
	CoreIntegrity int      `json:"core_integrity" jsonschema:"core integrity"`
	Movement      string   `json:"movement" jsonschema:"movement type"`
	Parts         []string `json:"parts,omitempty" jsonschema:"attached parts"`
}

// ListBotsResult lists catalog bots and weapons.
type ListBotsResult struct {
	Bots    []BotResult `json:"bots" jsonschema:"defender bots"`
	Weapons []string    `json:"weapons" jsonschema:"weapon names usable in a loadout"`
}

// SimulateBattleTool defines the MCP tool schema for running a batch.
func SimulateBattleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "simulate_battle",
		Description: "Runs a batch of simulated battles and reports volleys and time to kill",
	}
}

// EnqueueBattleTool defines the MCP tool schema for queueing a batch.
func EnqueueBattleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "enqueue_battle",
		Description: "Queues a batch for the background worker",
	}
}

// GetJobTool defines the MCP tool schema for reading a queued job.
func GetJobTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_job",
		Description: "Reports the status of a queued batch",
	}
}

// GetBatchTool defines the MCP tool schema for reading a stored batch.
func GetBatchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_batch",
		Description: "Returns a stored batch result",
	}
}

// ListBatchesTool defines the MCP tool schema for listing stored batches.
func ListBatchesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_batches",
		Description: "Lists stored batch results, newest first",
	}
}

// ListBotsTool defines the MCP tool schema for browsing the catalog.
func ListBotsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_bots",
		Description: "Lists the defender bots and weapons in the catalog",
	}
}

// SimulateBattleHandler runs a batch inline.
func SimulateBattleHandler(runner *sim.Runner) mcp.ToolHandlerFor[SimulateBattleInput, BatchResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SimulateBattleInput) (*mcp.CallToolResult, BatchResult, error) {
		if runner == nil {
			return nil, BatchResult{}, fmt.Errorf("simulation is not configured")
		}
		if input.Loadout.Trials > maxToolTrials {
			return nil, BatchResult{}, fmt.Errorf("trials %d exceeds the limit of %d", input.Loadout.Trials, maxToolTrials)
		}
		r := *runner
		if !input.Persist {
			r.Store = nil
		} else if r.Store == nil {
			return nil, BatchResult{}, fmt.Errorf("batch storage is not configured")
		}

		out, err := r.Run(ctx, input.Loadout)
		if err != nil {
			return nil, BatchResult{}, fmt.Errorf("simulate battle: %w", err)
		}
		result := batchResult(out.Summary)
		result.BatchID = out.BatchID
		return textResult(out.Summary), result, nil
	}
}

// EnqueueBattleHandler validates a loadout and queues it.
func EnqueueBattleHandler(cat *catalog.Catalog, jobs storage.JobStore) mcp.ToolHandlerFor[EnqueueBattleInput, JobResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EnqueueBattleInput) (*mcp.CallToolResult, JobResult, error) {
		if cat == nil || jobs == nil {
			return nil, JobResult{}, fmt.Errorf("job queue is not configured")
		}
		if _, err := loadout.Build(cat, input.Loadout); err != nil {
			return nil, JobResult{}, fmt.Errorf("invalid loadout: %w", err)
		}
		config, err := json.Marshal(input.Loadout)
		if err != nil {
			return nil, JobResult{}, fmt.Errorf("encode loadout: %w", err)
		}
		jobID, err := id.NewID()
		if err != nil {
			return nil, JobResult{}, err
		}
		if err := jobs.EnqueueJob(ctx, storage.JobRecord{ID: jobID, Config: config, Status: storage.JobQueued}); err != nil {
			return nil, JobResult{}, fmt.Errorf("enqueue battle: %w", err)
		}
		return &mcp.CallToolResult{}, JobResult{JobID: jobID, Status: string(storage.JobQueued)}, nil
	}
}

// GetJobHandler reads a queued job.
func GetJobHandler(jobs storage.JobStore) mcp.ToolHandlerFor[GetJobInput, JobResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetJobInput) (*mcp.CallToolResult, JobResult, error) {
		if jobs == nil {
			return nil, JobResult{}, fmt.Errorf("job queue is not configured")
		}
		jobID := strings.TrimSpace(input.JobID)
		if jobID == "" {
			return nil, JobResult{}, fmt.Errorf("job_id is required")
		}
		job, err := jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, JobResult{}, fmt.Errorf("get job %s: %w", jobID, err)
		}
		return &mcp.CallToolResult{}, JobResult{
			JobID:     job.ID,
			Status:    string(job.Status),
			Error:     job.Error,
			BatchID:   job.BatchID,
			UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		}, nil
	}
}

// GetBatchHandler reads a stored batch.
func GetBatchHandler(batches storage.BatchStore) mcp.ToolHandlerFor[GetBatchInput, BatchResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetBatchInput) (*mcp.CallToolResult, BatchResult, error) {
		if batches == nil {
			return nil, BatchResult{}, fmt.Errorf("batch storage is not configured")
		}
		batchID := strings.TrimSpace(input.BatchID)
		if batchID == "" {
			return nil, BatchResult{}, fmt.Errorf("batch_id is required")
		}
		record, err := batches.GetBatch(ctx, batchID)
		if err != nil {
			return nil, BatchResult{}, fmt.Errorf("get batch %s: %w", batchID, err)
		}
		summary := recordSummary(record)
		return textResult(summary), recordResult(record, summary), nil
	}
}

// ListBatchesHandler lists stored batches.
func ListBatchesHandler(batches storage.BatchStore) mcp.ToolHandlerFor[ListBatchesInput, ListBatchesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListBatchesInput) (*mcp.CallToolResult, ListBatchesResult, error) {
		if batches == nil {
			return nil, ListBatchesResult{}, fmt.Errorf("batch storage is not configured")
		}
		page, err := batches.ListBatches(ctx, storage.BatchQuery{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, ListBatchesResult{}, fmt.Errorf("list batches: %w", err)
		}
		result := ListBatchesResult{
			Batches:       make([]BatchResult, 0, len(page.Batches)),
			NextPageToken: page.NextPageToken,
		}
		for _, record := range page.Batches {
			result.Batches = append(result.Batches, recordResult(record, recordSummary(record)))
		}
		return &mcp.CallToolResult{}, result, nil
	}
}

// ListBotsHandler lists the catalog.
func ListBotsHandler(cat *catalog.Catalog) mcp.ToolHandlerFor[ListBotsInput, ListBotsResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ ListBotsInput) (*mcp.CallToolResult, ListBotsResult, error) {
		if cat == nil {
			return nil, ListBotsResult{}, fmt.Errorf("catalog is not configured")
		}
		result := ListBotsResult{Weapons: cat.WeaponNames()}
		for _, name := range cat.BotNames() {
			bot, err := cat.Bot(name)
			if err != nil {
				return nil, ListBotsResult{}, err
			}
			parts := make([]string, 0, len(bot.Spec.Parts))
			for _, part := range bot.Spec.Parts {
				parts = append(parts, part.Name)
			}
			result.Bots = append(result.Bots, BotResult{
				Name:          bot.Name,
				Class:         bot.Class,
				CoreIntegrity: bot.Spec.CoreIntegrity,
				Movement:      bot.Spec.Movement.String(),
				Parts:         parts,
			})
		}
		return &mcp.CallToolResult{}, result, nil
	}
}

func recordSummary(record storage.BatchRecord) report.Summary {
	return report.Summarize(record.Name, record.Defender, nil, sim.ResultFromRecord(record))
}

func recordResult(record storage.BatchRecord, summary report.Summary) BatchResult {
	result := batchResult(summary)
	result.BatchID = record.ID
	result.CreatedAt = record.CreatedAt.Format(time.RFC3339)
	return result
}

func batchResult(s report.Summary) BatchResult {
	result := BatchResult{
		Name:               s.Name,
		Defender:           s.Defender,
		Requested:          s.Requested,
		Trials:             s.Trials,
		Cancelled:          s.Cancelled,
		ExceededMaxVolleys: s.Exceeded,
		CorruptionKills:    s.CorruptionKills,
		Volleys:            StatsResult(s.Volleys),
		TUs:                StatsResult(s.TUs),
	}
	for _, k := range s.KillChances {
		result.KillChances = append(result.KillChances, KillChanceResult(k))
	}
	return result
}

// textResult renders the summary for clients that only read text content.
func textResult(s report.Summary) *mcp.CallToolResult {
	var b strings.Builder
	if err := report.WriteText(&b, language.English, s); err != nil {
		return &mcp.CallToolResult{}
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: b.String()}}}
}
