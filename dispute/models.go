package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Resolution is the admin decision recorded when a dispute leaves pending.
type Resolution string

const (
	ResolutionDisputerWins Resolution = "disputer_wins"
	ResolutionRejected     Resolution = "rejected"
)

// Record mirrors the disputes table. Resolution fields are written exactly
// once; resolution is terminal.
type Record struct {
	ID            string
	ContractID    string
	DisputerID    string
	TransactionID string
	Reason        string
	EvidenceURLs  []string
	Status        Status
	Resolution    *Resolution
	AdminReason   *string
	ResolvedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FileParams enumerates the fields required to open a dispute.
type FileParams struct {
	ContractID    string
	DisputerID    string
	TransactionID string
	Reason        string
	EvidenceURLs  []string
}
