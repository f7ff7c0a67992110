package contract

import "time"

// Status represents the lifecycle of a rental contract.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusTerminated Status = "terminated"
	StatusExpired    Status = "expired"
)

// PendingUpdate is the renewal overlay: a proposed new end date attached to an
// active contract but not yet applied. At most one exists per contract;
// submitting a new one replaces the old.
type PendingUpdate struct {
	NewEndDate  time.Time
	SubmittedAt time.Time
}

// Contract mirrors the contracts table columns touched by the engine.
// Version backs the optimistic-concurrency check on every transition write.
type Contract struct {
	ID            string
	TenantID      string
	OwnerID       string
	RoomID        string
	StartDate     time.Time
	EndDate       time.Time
	Status        Status
	TenantSigned  bool
	OwnerSigned   bool
	PendingUpdate *PendingUpdate
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTerminal returns true once the contract can no longer transition.
func (c *Contract) IsTerminal() bool {
	switch c.Status {
	case StatusTerminated, StatusExpired:
		return true
	}
	return false
}

// CreateParams enumerates the fields required to open a pending contract.
type CreateParams struct {
	TenantID  string
	RoomID    string
	StartDate time.Time
	EndDate   time.Time
}
