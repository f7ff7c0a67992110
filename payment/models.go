package payment

import "time"

// RefundStatus records the compensating-refund outcome against a transaction.
type RefundStatus string

const (
	RefundNone   RefundStatus = "none"
	RefundDone   RefundStatus = "refunded"
	RefundFailed RefundStatus = "failed"
)

// Transaction mirrors the transactions table: the deposit record backing a
// contract. The ledger proper belongs to the external payments subsystem; the
// engine only needs existence and refundability.
type Transaction struct {
	ID           string
	ContractID   string
	AmountCents  int64
	Status       string
	RefundStatus RefundStatus
	RefundedAt   *time.Time
	RefundError  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
