package dispute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"leaseflow/contract"
	"leaseflow/notify"
)

// ErrInvalidDecision signals a decision outside {disputer_wins, rejected}.
var ErrInvalidDecision = errors.New("dispute: invalid decision")

// Store defines the persistence required by the service.
type Store interface {
	Create(ctx context.Context, params FileParams) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	ListByContract(ctx context.Context, contractID string) ([]Record, error)
	Resolve(ctx context.Context, id string, resolution Resolution, adminReason string) (Record, error)
}

// ContractTerminator ends the disputed contract through the state machine.
type ContractTerminator interface {
	TerminateByDispute(ctx context.Context, contractID string) (contract.Contract, error)
}

// Refunder issues the compensating deposit refund at most once.
type Refunder interface {
	RefundDeposit(ctx context.Context, contractID string) error
}

// Notifier informs both contract parties; failures are logged, never escalated.
type Notifier interface {
	NotifyParties(ctx context.Context, tenantID, ownerID, roomID, template string, data map[string]any) error
}

// Service processes dispute filing and the admin decision. A decision in the
// disputer's favor terminates the contract and refunds the deposit; the
// resolution write itself is terminal and never rolled back by side-effect
// failures.
type Service struct {
	repo           Store
	contracts      ContractTerminator
	refunder       Refunder
	notifier       Notifier
	logger         *slog.Logger
	terminateOnWin bool
}

func NewService(repo Store, contracts ContractTerminator, refunder Refunder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		contracts:      contracts,
		refunder:       refunder,
		logger:         logger,
		terminateOnWin: true,
	}
}

// WithNotifier adds party notification on termination.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithTerminateOnWin toggles whether a disputer win terminates the contract.
func (s *Service) WithTerminateOnWin(v bool) *Service {
	s.terminateOnWin = v
	return s
}

// File opens a dispute against a contract's deposit transaction.
func (s *Service) File(ctx context.Context, params FileParams) (Record, error) {
	if params.Reason == "" {
		return Record{}, fmt.Errorf("dispute: reason required")
	}
	return s.repo.Create(ctx, params)
}

// Get returns a dispute by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// ListByContract returns disputes filed against a contract.
func (s *Service) ListByContract(ctx context.Context, contractID string) ([]Record, error) {
	return s.repo.ListByContract(ctx, contractID)
}

// Decide applies the admin decision. An unknown dispute returns ErrNotFound;
// a second decision returns ErrAlreadyResolved and leaves everything as is.
func (s *Service) Decide(ctx context.Context, disputeID string, decision Resolution, adminReason string) (Record, error) {
	if decision != ResolutionDisputerWins && decision != ResolutionRejected {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	rec, err := s.repo.Resolve(ctx, disputeID, decision, adminReason)
	if err != nil {
		return Record{}, err
	}

	if decision == ResolutionDisputerWins && s.terminateOnWin {
		s.terminateAndRefund(ctx, rec)
	}

	return rec, nil
}

// terminateAndRefund runs the compensating side of a disputer win. The
// dispute is already resolved at this point, so every failure here is logged
// and left to the sweep retry path rather than propagated.
func (s *Service) terminateAndRefund(ctx context.Context, rec Record) {
	c, err := s.contracts.TerminateByDispute(ctx, rec.ContractID)
	switch {
	case err == nil:
		// fallthrough to refund
	case errors.Is(err, contract.ErrInvalidTransition):
		// Contract already closed (expired or terminated); the refund below
		// still applies and is safe because it is at most once.
		s.logger.Warn("dispute win on closed contract",
			"disputeId", rec.ID, "contractId", rec.ContractID, "error", err)
	default:
		s.logger.Error("failed to terminate disputed contract",
			"disputeId", rec.ID, "contractId", rec.ContractID, "error", err)
		return
	}

	if err := s.refunder.RefundDeposit(ctx, rec.ContractID); err != nil {
		s.logger.Warn("dispute refund failed, will retry on next sweep",
			"disputeId", rec.ID, "contractId", rec.ContractID, "error", err)
	}

	if s.notifier != nil && c.ID != "" {
		if err := s.notifier.NotifyParties(ctx, c.TenantID, c.OwnerID, c.RoomID,
			notify.TemplateContractTerminated, map[string]any{
				"contract_id": c.ID,
				"dispute_id":  rec.ID,
				"reason":      rec.Reason,
			}); err != nil {
			s.logger.Warn("termination notification failed",
				"disputeId", rec.ID, "contractId", rec.ContractID, "error", err)
		}
	}
}
