package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRefundFailed wraps gateway failures. Non-fatal to the caller: the
// contract's temporal state stands regardless of whether money has moved yet,
// and the next sweep pass retries.
var ErrRefundFailed = errors.New("payment: refund failed")

// Gateway is the external payments collaborator. The engine only decides when
// to call it and records the outcome.
type Gateway interface {
	Refund(ctx context.Context, transactionID string) error
}

// RefundStore is the persistence the orchestrator needs.
type RefundStore interface {
	GetDeposit(ctx context.Context, contractID string) (Transaction, error)
	MarkRefunded(ctx context.Context, transactionID string) error
	MarkRefundFailed(ctx context.Context, transactionID, cause string) error
}

// Orchestrator issues a compensating refund at most once per contract closure.
type Orchestrator struct {
	store   RefundStore
	gateway Gateway
	logger  *slog.Logger
}

func NewOrchestrator(store RefundStore, gateway Gateway, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: store, gateway: gateway, logger: logger}
}

// RefundDeposit refunds the deposit backing the contract. A transaction that
// already carries a refunded outcome is a no-op, which makes re-runs from a
// repeated sweep safe. Failures are recorded against the transaction and
// reported as ErrRefundFailed; the caller logs and retries next pass.
func (o *Orchestrator) RefundDeposit(ctx context.Context, contractID string) error {
	dep, err := o.store.GetDeposit(ctx, contractID)
	if err != nil {
		return err
	}

	if dep.RefundStatus == RefundDone {
		o.logger.Debug("deposit already refunded", "contractId", contractID, "transactionId", dep.ID)
		return nil
	}

	if err := o.gateway.Refund(ctx, dep.ID); err != nil {
		if recErr := o.store.MarkRefundFailed(ctx, dep.ID, err.Error()); recErr != nil {
			o.logger.Error("failed to record refund failure",
				"contractId", contractID, "transactionId", dep.ID, "error", recErr)
		}
		return fmt.Errorf("%w: transaction %s: %v", ErrRefundFailed, dep.ID, err)
	}

	if err := o.store.MarkRefunded(ctx, dep.ID); err != nil {
		// Money has moved but the record is stale. A retry would re-issue,
		// so this needs manual resolution rather than automatic retry.
		o.logger.Error("CRITICAL: refund issued but outcome write failed",
			"contractId", contractID, "transactionId", dep.ID, "error", err)
		return fmt.Errorf("payment: record refund outcome: %w", err)
	}

	o.logger.Info("deposit refunded", "contractId", contractID, "transactionId", dep.ID, "amountCents", dep.AmountCents)
	return nil
}

// LogGateway is a development Gateway that records refunds in the log instead
// of moving money.
type LogGateway struct {
	Logger *slog.Logger
}

func (l LogGateway) Refund(ctx context.Context, transactionID string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("refund issued", "transactionId", transactionID)
	return nil
}
