// Package sweep contains the time-triggered reconciliation passes over the
// contract store. Each run takes its clock as a parameter and is safe to
// repeat: a rerun observes already-transitioned contracts and no-ops.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"leaseflow/contract"
	"leaseflow/notify"
	"leaseflow/payment"
)

// DueSource selects the contracts a sweep pass evaluates.
type DueSource interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]contract.Contract, error)
}

// Engine applies the expire-or-renew transition with the optimistic check.
type Engine interface {
	ExpireOrRenew(ctx context.Context, c contract.Contract, now time.Time) (contract.Contract, contract.Outcome, error)
}

// Refunder issues the compensating deposit refund at most once.
type Refunder interface {
	RefundDeposit(ctx context.Context, contractID string) error
}

// FailedRefundSource lists contracts whose earlier refund attempt failed.
type FailedRefundSource interface {
	ListContractsWithFailedRefunds(ctx context.Context, limit int) ([]string, error)
}

// Notifier informs both contract parties; failures are recorded per item.
type Notifier interface {
	NotifyParties(ctx context.Context, tenantID, ownerID, roomID, template string, data map[string]any) error
}

// Expiry is the daily pass that expires lapsed contracts or applies their
// pending renewals, refunds deposits on expiry, and retries refunds that
// failed on earlier passes.
type Expiry struct {
	contracts   DueSource
	engine      Engine
	refunder    Refunder
	retries     FailedRefundSource
	notifier    Notifier
	logger      *slog.Logger
	batchSize   int
	parallelism int
}

func NewExpiry(contracts DueSource, engine Engine, refunder Refunder, retries FailedRefundSource, notifier Notifier, logger *slog.Logger) *Expiry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expiry{
		contracts:   contracts,
		engine:      engine,
		refunder:    refunder,
		retries:     retries,
		notifier:    notifier,
		logger:      logger,
		batchSize:   500,
		parallelism: 8,
	}
}

// WithLimits overrides batch size and per-item parallelism.
func (s *Expiry) WithLimits(batchSize, parallelism int) *Expiry {
	if batchSize > 0 {
		s.batchSize = batchSize
	}
	if parallelism > 0 {
		s.parallelism = parallelism
	}
	return s
}

// Run executes one expiry pass. Per-item failures land in the report; nothing
// aborts the remainder of the batch.
func (s *Expiry) Run(ctx context.Context, now time.Time) *Report {
	report := NewReport("expiry", now)
	started := time.Now()
	defer func() { report.Duration = time.Since(started) }()

	due, err := s.contracts.ListDue(ctx, now, s.batchSize)
	if err != nil {
		report.Fail(err)
		return report
	}

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for _, c := range due {
		c := c
		g.Go(func() error {
			report.Add(s.processDue(ctx, c, now))
			return nil
		})
	}
	_ = g.Wait()

	s.retryFailedRefunds(ctx, report)
	return report
}

func (s *Expiry) processDue(ctx context.Context, c contract.Contract, now time.Time) ItemResult {
	updated, outcome, err := s.engine.ExpireOrRenew(ctx, c, now)
	switch {
	case errors.Is(err, contract.ErrConflict):
		// A concurrent writer (renewal submission, dispute termination) won
		// the race; re-evaluate on the next pass.
		return ItemResult{ContractID: c.ID, Outcome: OutcomeConflict, Err: err}
	case err != nil:
		return ItemResult{ContractID: c.ID, Outcome: OutcomeError, Err: err}
	}

	switch outcome {
	case contract.OutcomeRenewed:
		if err := s.notifier.NotifyParties(ctx, updated.TenantID, updated.OwnerID, updated.RoomID,
			notify.TemplateContractRenewed, map[string]any{
				"contract_id":  updated.ID,
				"new_end_date": updated.EndDate,
			}); err != nil {
			return ItemResult{ContractID: c.ID, Outcome: OutcomeNotifyFailed, Err: err}
		}
		return ItemResult{ContractID: c.ID, Outcome: OutcomeRenewed}

	case contract.OutcomeExpired:
		refundErr := s.refunder.RefundDeposit(ctx, updated.ID)
		if errors.Is(refundErr, payment.ErrNoDeposit) {
			refundErr = nil
		}

		// The expiry notification goes out regardless of the refund outcome;
		// a refund failure is reported separately and retried next pass.
		notifyErr := s.notifier.NotifyParties(ctx, updated.TenantID, updated.OwnerID, updated.RoomID,
			notify.TemplateContractExpired, map[string]any{
				"contract_id": updated.ID,
				"end_date":    updated.EndDate,
			})

		switch {
		case refundErr != nil:
			return ItemResult{ContractID: c.ID, Outcome: OutcomeRefundFailed, Err: refundErr}
		case notifyErr != nil:
			return ItemResult{ContractID: c.ID, Outcome: OutcomeNotifyFailed, Err: notifyErr}
		default:
			return ItemResult{ContractID: c.ID, Outcome: OutcomeExpired}
		}
	}

	return ItemResult{ContractID: c.ID, Outcome: OutcomeSkipped}
}

// retryFailedRefunds re-drives refunds whose outcome was recorded as failed on
// an earlier pass. The orchestrator's already-refunded check keeps this at
// most once.
func (s *Expiry) retryFailedRefunds(ctx context.Context, report *Report) {
	ids, err := s.retries.ListContractsWithFailedRefunds(ctx, s.batchSize)
	if err != nil {
		report.Fail(err)
		return
	}

	for _, id := range ids {
		if err := s.refunder.RefundDeposit(ctx, id); err != nil {
			report.Add(ItemResult{ContractID: id, Outcome: OutcomeRefundFailed, Err: err})
			continue
		}
		report.Add(ItemResult{ContractID: id, Outcome: OutcomeRefunded})
	}
}
