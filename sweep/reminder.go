package sweep

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"leaseflow/contract"
	"leaseflow/notify"
)

// ReminderOffsets are the day-counts ahead of expiry at which parties are
// reminded.
var ReminderOffsets = []int{7, 3, 1}

// EndingSource selects active contracts ending inside [from, to).
type EndingSource interface {
	ListEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]contract.Contract, error)
}

// Reminder is the daily pass that warns tenant and owner of an upcoming
// expiry. Contracts with a legitimate pending renewal are skipped: the expiry
// sweep is the sole authority that applies or discards a renewal, and a
// reminder about a superseded expiry would be noise.
type Reminder struct {
	contracts   EndingSource
	notifier    Notifier
	logger      *slog.Logger
	offsets     []int
	batchSize   int
	parallelism int
}

func NewReminder(contracts EndingSource, notifier Notifier, logger *slog.Logger) *Reminder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminder{
		contracts:   contracts,
		notifier:    notifier,
		logger:      logger,
		offsets:     ReminderOffsets,
		batchSize:   500,
		parallelism: 8,
	}
}

// WithLimits overrides batch size and per-item parallelism.
func (s *Reminder) WithLimits(batchSize, parallelism int) *Reminder {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if parallelism > 0 {
		s.parallelism = parallelism
	}
	return s
}

// dayWindowUTC returns the [start, end) bounds of the UTC calendar day that
// lies offsetDays ahead of now.
func dayWindowUTC(now time.Time, offsetDays int) (time.Time, time.Time) {
	day := now.UTC().AddDate(0, 0, offsetDays)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// Run executes one reminder pass. Duplicate reminders on a rerun are
// acceptable; nothing durable is written.
func (s *Reminder) Run(ctx context.Context, now time.Time) *Report {
	report := NewReport("reminder", now)
	started := time.Now()
	defer func() { report.Duration = time.Since(started) }()

	var g errgroup.Group
	g.SetLimit(s.parallelism)

	for _, offset := range s.offsets {
		from, to := dayWindowUTC(now, offset)
		ending, err := s.contracts.ListEndingBetween(ctx, from, to, s.batchSize)
		if err != nil {
			report.Fail(err)
			continue
		}

		for _, c := range ending {
			c, offset := c, offset
			g.Go(func() error {
				report.Add(s.remind(ctx, c, now, offset))
				return nil
			})
		}
	}

	_ = g.Wait()
	return report
}

func (s *Reminder) remind(ctx context.Context, c contract.Contract, now time.Time, daysLeft int) ItemResult {
	if contract.RenewalLegitimate(&c, now) {
		return ItemResult{ContractID: c.ID, Outcome: OutcomeSkipped}
	}

	if err := s.notifier.NotifyParties(ctx, c.TenantID, c.OwnerID, c.RoomID,
		notify.TemplateExpiryReminder, map[string]any{
			"contract_id": c.ID,
			"end_date":    c.EndDate,
			"days_left":   daysLeft,
		}); err != nil {
		return ItemResult{ContractID: c.ID, Outcome: OutcomeNotifyFailed, Err: err}
	}
	return ItemResult{ContractID: c.ID, Outcome: OutcomeReminded}
}
