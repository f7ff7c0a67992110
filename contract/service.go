package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrForbidden signals the caller is not a party to the contract.
var ErrForbidden = errors.New("contract: forbidden")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the persistence required by the service.
type Store interface {
	Create(ctx context.Context, params CreateParams) (Contract, error)
	Get(ctx context.Context, id string) (Contract, error)
	ListByParty(ctx context.Context, userID string, limit int) ([]Contract, error)
	Update(ctx context.Context, c *Contract) error
	InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error
	ActivateTx(ctx context.Context, tx pgx.Tx, id string) (Contract, error)
	DeleteStalePendingTx(ctx context.Context, tx pgx.Tx, roomID, keepContractID string) (int64, error)
}

// DepositRecorder records the settled deposit transaction alongside the
// activation, inside the same database transaction.
type DepositRecorder interface {
	RecordDepositTx(ctx context.Context, tx pgx.Tx, contractID string, amountCents int64) error
}

// Service drives contract lifecycle operations. All status mutation flows
// through the state-machine functions; nothing else writes contract status.
type Service struct {
	pool     TxBeginner
	store    Store
	deposits DepositRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(pool TxBeginner, store Store, deposits DepositRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		store:    store,
		deposits: deposits,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create opens a pending contract initiated by the tenant.
func (s *Service) Create(ctx context.Context, tenantID string, params CreateParams) (Contract, error) {
	params.TenantID = tenantID
	if params.RoomID == "" {
		return Contract{}, fmt.Errorf("contract: room id required")
	}
	if !params.EndDate.After(params.StartDate) {
		return Contract{}, ErrInvalidDates
	}
	return s.store.Create(ctx, params)
}

// Get returns the contract when the caller is a party to it.
func (s *Service) Get(ctx context.Context, id, callerID string) (Contract, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if c.TenantID != callerID && c.OwnerID != callerID {
		return Contract{}, ErrForbidden
	}
	return c, nil
}

// ListByParty returns the caller's contracts.
func (s *Service) ListByParty(ctx context.Context, userID string, limit int) ([]Contract, error) {
	return s.store.ListByParty(ctx, userID, limit)
}

// DepositSettledRequest captures the payments webhook payload normalized for
// the service.
type DepositSettledRequest struct {
	ContractID     string
	IdempotencyKey string
	AmountCents    int64
}

// HandleDepositSettled activates a pending contract once its deposit clears.
// The idempotency key, the activation, the deposit record, and the stale
// pending cleanup for the room all commit in one transaction, so webhook
// retries replay safely.
func (s *Service) HandleDepositSettled(ctx context.Context, req DepositSettledRequest) (Contract, error) {
	if req.IdempotencyKey == "" {
		return Contract{}, fmt.Errorf("contract: missing idempotency key")
	}
	if req.ContractID == "" {
		return Contract{}, fmt.Errorf("contract: missing contract id")
	}
	if req.AmountCents <= 0 {
		return Contract{}, fmt.Errorf("contract: invalid deposit amount")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.store.InsertIdempotencyKey(ctx, tx, req.IdempotencyKey); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			return s.store.Get(ctx, req.ContractID)
		}
		return Contract{}, err
	}

	c, err := s.store.ActivateTx(ctx, tx, req.ContractID)
	if err != nil {
		return Contract{}, err
	}

	if err := s.deposits.RecordDepositTx(ctx, tx, c.ID, req.AmountCents); err != nil {
		return Contract{}, err
	}

	removed, err := s.store.DeleteStalePendingTx(ctx, tx, c.RoomID, c.ID)
	if err != nil {
		return Contract{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit activation: %w", err)
	}

	if removed > 0 {
		s.logger.Info("removed stale pending contracts",
			"roomId", c.RoomID, "contractId", c.ID, "count", removed)
	}
	return c, nil
}

// SubmitRenewal attaches a renewal overlay on behalf of a contract party.
func (s *Service) SubmitRenewal(ctx context.Context, contractID, callerID string, newEnd time.Time) (Contract, error) {
	c, err := s.store.Get(ctx, contractID)
	if err != nil {
		return Contract{}, err
	}
	if c.TenantID != callerID && c.OwnerID != callerID {
		return Contract{}, ErrForbidden
	}
	if err := SubmitRenewal(&c, newEnd, s.now()); err != nil {
		return Contract{}, err
	}
	if err := s.store.Update(ctx, &c); err != nil {
		return Contract{}, err
	}
	return c, nil
}

// ExpireOrRenew applies the clock-driven transition and persists it with the
// optimistic-version check. A conflict means a concurrent writer won the race;
// the caller skips and re-evaluates on its next pass.
func (s *Service) ExpireOrRenew(ctx context.Context, c Contract, now time.Time) (Contract, Outcome, error) {
	out := ExpireOrRenew(&c, now)
	if out == OutcomeNone {
		return c, out, nil
	}
	if err := s.store.Update(ctx, &c); err != nil {
		return c, out, err
	}
	return c, out, nil
}

// TerminateByDispute ends an active contract following an admin decision in
// the disputer's favor. A version race is retried once against a fresh read.
func (s *Service) TerminateByDispute(ctx context.Context, contractID string) (Contract, error) {
	for attempt := 0; ; attempt++ {
		c, err := s.store.Get(ctx, contractID)
		if err != nil {
			return Contract{}, err
		}
		if err := TerminateByDispute(&c); err != nil {
			return Contract{}, err
		}
		err = s.store.Update(ctx, &c)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			continue
		}
		return Contract{}, err
	}
}
