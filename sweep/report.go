package sweep

import (
	"log/slog"
	"sync"
	"time"
)

// ItemOutcome classifies what happened to one contract during a sweep pass.
type ItemOutcome string

const (
	OutcomeRenewed      ItemOutcome = "renewed"
	OutcomeExpired      ItemOutcome = "expired"
	OutcomeReminded     ItemOutcome = "reminded"
	OutcomeSkipped      ItemOutcome = "skipped"
	OutcomeConflict     ItemOutcome = "conflict"
	OutcomeRefunded     ItemOutcome = "refunded"
	OutcomeRefundFailed ItemOutcome = "refund_failed"
	OutcomeNotifyFailed ItemOutcome = "notify_failed"
	OutcomeError        ItemOutcome = "error"
)

// ItemResult is the per-contract record in a sweep report. Failures are
// accumulated here instead of aborting the batch.
type ItemResult struct {
	ContractID string
	Outcome    ItemOutcome
	Err        error
}

// Report collects the results of one sweep run.
type Report struct {
	Sweep     string
	StartedAt time.Time
	Duration  time.Duration

	mu      sync.Mutex
	results []ItemResult
	runErrs []error
}

func NewReport(sweep string, startedAt time.Time) *Report {
	return &Report{Sweep: sweep, StartedAt: startedAt}
}

// Add records a per-item result. Safe for concurrent use.
func (r *Report) Add(res ItemResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

// Fail records a run-level failure (e.g. the selection query itself).
func (r *Report) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runErrs = append(r.runErrs, err)
}

// Results returns a copy of the per-item results.
func (r *Report) Results() []ItemResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ItemResult, len(r.results))
	copy(out, r.results)
	return out
}

// Counts tallies results by outcome.
func (r *Report) Counts() map[ItemOutcome]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[ItemOutcome]int, 8)
	for _, res := range r.results {
		counts[res.Outcome]++
	}
	return counts
}

// Log writes the run summary plus one line per failed item.
func (r *Report) Log(logger *slog.Logger) {
	counts := r.Counts()
	attrs := []any{"sweep", r.Sweep, "startedAt", r.StartedAt, "duration", r.Duration}
	for outcome, n := range counts {
		attrs = append(attrs, string(outcome), n)
	}
	logger.Info("sweep finished", attrs...)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, err := range r.runErrs {
		logger.Error("sweep run error", "sweep", r.Sweep, "error", err)
	}
	for _, res := range r.results {
		if res.Err != nil {
			logger.Warn("sweep item failure",
				"sweep", r.Sweep, "contractId", res.ContractID,
				"outcome", string(res.Outcome), "error", res.Err)
		}
	}
}
