package battle

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// defaultProgressInterval is how many completed trials pass between progress
// callbacks when BatchRequest.ProgressInterval is unset.
const defaultProgressInterval = 1000

// BatchRequest configures RunBatch.
type BatchRequest struct {
	Defender *DefenderTemplate
	Offense  *OffensiveState
	Trials   int
	// Workers caps concurrent trials. Zero uses GOMAXPROCS.
	Workers int
	// Seed makes the batch reproducible when set.
	Seed *int64
	// Progress receives the number of completed trials. It is called from
	// worker goroutines and must be safe for concurrent use.
	Progress         func(completed int)
	ProgressInterval int
}

// BatchResult aggregates the outcomes of a batch.
type BatchResult struct {
	KillVolleys Histogram
	KillTUs     Histogram
	// Requested is the trial count asked for; Trials is how many completed.
	Requested int
	Trials    int
	// CorruptionKills counts trials ended by corruption rather than core damage.
	CorruptionKills int
	// ExceededMaxVolleys reports that a trial reached MaxVolleys and the batch
	// stopped early.
	ExceededMaxVolleys bool
	Cancelled          bool
}

// NotRun returns how many requested trials were never completed.
func (r BatchResult) NotRun() int {
	return r.Requested - r.Trials
}

func (r *BatchResult) add(outcome TrialOutcome) {
	r.KillVolleys.Add(outcome.Volleys)
	r.KillTUs.Add(outcome.TUs)
	r.Trials++
	if outcome.Reason == KillCorruption {
		r.CorruptionKills++
	}
}

func (r *BatchResult) merge(other BatchResult) {
	r.KillVolleys.Merge(other.KillVolleys)
	r.KillTUs.Merge(other.KillTUs)
	r.Trials += other.Trials
	r.CorruptionKills += other.CorruptionKills
}

// RunBatch runs req.Trials independent trials across a worker pool.
//
// Cancelling ctx stops workers from starting new trials; trials already in
// flight finish and the partial result is returned with Cancelled set and a
// nil error. When any trial exceeds MaxVolleys the whole batch stops and the
// result reports ExceededMaxVolleys.
func RunBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if req.Trials <= 0 {
		return BatchResult{}, ErrInvalidTrials
	}
	if req.Defender == nil {
		return BatchResult{}, ErrInvalidDefender
	}
	if err := req.Offense.Validate(); err != nil {
		return BatchResult{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	workers := req.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > req.Trials {
		workers = req.Trials
	}
	interval := req.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	var (
		next      atomic.Int64
		completed atomic.Int64
		exceeded  atomic.Bool
	)
	partials := make([]BatchResult, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var (
				t       trial
				local   BatchResult
				rng     *rand.Rand
				seedPCG *rand.PCG
			)
			if req.Seed != nil {
				seedPCG = rand.NewPCG(0, 0)
				rng = rand.New(seedPCG)
			} else {
				rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			}

			for ctx.Err() == nil && !exceeded.Load() {
				index := next.Add(1) - 1
				if index >= int64(req.Trials) {
					break
				}
				if seedPCG != nil {
					seedPCG.Seed(uint64(*req.Seed), uint64(index))
				}
				t.reset(rng, req.Defender, req.Offense)
				outcome, err := t.run()
				if errors.Is(err, ErrMaxVolleysExceeded) {
					exceeded.Store(true)
					break
				}
				if err != nil {
					return err
				}
				local.add(outcome)
				if done := completed.Add(1); req.Progress != nil && done%int64(interval) == 0 {
					req.Progress(int(done))
				}
			}
			partials[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Requested: req.Trials}
	for _, partial := range partials {
		result.merge(partial)
	}
	result.ExceededMaxVolleys = exceeded.Load()
	result.Cancelled = ctx.Err() != nil && result.Trials < req.Trials && !result.ExceededMaxVolleys
	return result, nil
}
