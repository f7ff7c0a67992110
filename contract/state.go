package contract

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound signals that no contract row exists for the identifier.
	ErrNotFound = errors.New("contract: not found")
	// ErrInvalidTransition signals a status precondition violation.
	ErrInvalidTransition = errors.New("contract: invalid status transition")
	// ErrConflict signals an optimistic-concurrency race; callers re-evaluate
	// on their next pass instead of escalating.
	ErrConflict = errors.New("contract: concurrent update conflict")
	// ErrInvalidDates signals end date not strictly after start date.
	ErrInvalidDates = errors.New("contract: end date must be after start date")
	// ErrRenewalNotLater signals a proposed end date that does not extend the contract.
	ErrRenewalNotLater = errors.New("contract: renewal must propose a later end date")
)

// Outcome is the result of evaluating a contract against the clock.
type Outcome int

const (
	// OutcomeNone means no transition applied: the contract was not active or
	// not yet due. Sweeps rely on this to make reruns no-ops.
	OutcomeNone Outcome = iota
	// OutcomeRenewed means the pending update superseded expiry.
	OutcomeRenewed
	// OutcomeExpired means the contract lapsed.
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRenewed:
		return "renewed"
	case OutcomeExpired:
		return "expired"
	default:
		return "none"
	}
}

// Activate moves a pending contract to active. Called when the deposit
// transaction backing the contract settles.
func Activate(c *Contract) error {
	if c.Status != StatusPending {
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, c.Status)
	}
	c.Status = StatusActive
	return nil
}

// SubmitRenewal attaches or replaces the renewal overlay without changing
// status. The proposed end date must strictly extend the current one.
func SubmitRenewal(c *Contract, newEnd time.Time, now time.Time) error {
	if c.Status != StatusActive {
		return fmt.Errorf("%w: renew from %s", ErrInvalidTransition, c.Status)
	}
	if !newEnd.After(c.EndDate) {
		return ErrRenewalNotLater
	}
	c.PendingUpdate = &PendingUpdate{NewEndDate: newEnd, SubmittedAt: now}
	return nil
}

// RenewalLegitimate reports whether the overlay should supersede expiry: it
// must exist and its proposed end date must still lie in the future. A renewal
// that would itself already be stale is not legitimate. Kept as a single
// predicate so the rule can be tightened without touching sweep logic.
func RenewalLegitimate(c *Contract, now time.Time) bool {
	return c.PendingUpdate != nil && c.PendingUpdate.NewEndDate.After(now)
}

// ExpireOrRenew evaluates an active contract whose end date has been reached.
// With a legitimate overlay the contract extends and stays active; otherwise
// it expires. Contracts that are not active or not yet due are left untouched.
func ExpireOrRenew(c *Contract, now time.Time) Outcome {
	if c.Status != StatusActive || c.EndDate.After(now) {
		return OutcomeNone
	}
	if RenewalLegitimate(c, now) {
		c.EndDate = c.PendingUpdate.NewEndDate
		c.PendingUpdate = nil
		return OutcomeRenewed
	}
	// A stale overlay is discarded together with the expiry.
	c.PendingUpdate = nil
	c.Status = StatusExpired
	return OutcomeExpired
}

// TerminateByDispute moves an active contract to terminated. Invoked only by
// the dispute decision path when the disputer wins.
func TerminateByDispute(c *Contract) error {
	if c.Status != StatusActive {
		return fmt.Errorf("%w: terminate from %s", ErrInvalidTransition, c.Status)
	}
	c.PendingUpdate = nil
	c.Status = StatusTerminated
	return nil
}
