package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNoDeposit signals the contract has no deposit transaction.
	ErrNoDeposit = errors.New("payment: no deposit transaction")
	// ErrTransactionNotFound signals an unknown transaction id.
	ErrTransactionNotFound = errors.New("payment: transaction not found")
)

const transactionColumns = `id, contract_id, amount_cents, status, refund_status::text,
       refunded_at, refund_error, created_at, updated_at`

// Repository handles deposit transaction persistence.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID, &t.ContractID, &t.AmountCents, &t.Status, &t.RefundStatus,
		&t.RefundedAt, &t.RefundError, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// RecordDepositTx inserts the settled deposit inside the caller's transaction,
// alongside the contract activation it backs.
func (r *Repository) RecordDepositTx(ctx context.Context, tx pgx.Tx, contractID string, amountCents int64) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO transactions (contract_id, amount_cents)
		VALUES ($1, $2)
	`, contractID, amountCents); err != nil {
		return fmt.Errorf("payment: record deposit: %w", err)
	}
	return nil
}

// GetDeposit returns the deposit transaction backing the contract.
func (r *Repository) GetDeposit(ctx context.Context, contractID string) (Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE contract_id = $1 AND status = 'paid'
		ORDER BY created_at DESC
		LIMIT 1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNoDeposit
		}
		return Transaction{}, fmt.Errorf("payment: get deposit: %w", err)
	}
	return t, nil
}

// Get returns a transaction by id.
func (r *Repository) Get(ctx context.Context, id string) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("payment: get transaction: %w", err)
	}
	return t, nil
}

// MarkRefunded records a successful refund. The condition keeps the write
// idempotent: an already-refunded transaction is left untouched.
func (r *Repository) MarkRefunded(ctx context.Context, transactionID string) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET refund_status = 'refunded'::refund_status,
		    refunded_at = now(),
		    refund_error = NULL,
		    updated_at = now()
		WHERE id = $1 AND refund_status <> 'refunded'
	`, transactionID); err != nil {
		return fmt.Errorf("payment: mark refunded: %w", err)
	}
	return nil
}

// MarkRefundFailed records a failed refund attempt for later retry. A
// transaction that already refunded is never downgraded.
func (r *Repository) MarkRefundFailed(ctx context.Context, transactionID, cause string) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET refund_status = 'failed'::refund_status,
		    refund_error = $2,
		    updated_at = now()
		WHERE id = $1 AND refund_status <> 'refunded'
	`, transactionID, cause); err != nil {
		return fmt.Errorf("payment: mark refund failed: %w", err)
	}
	return nil
}

// ListContractsWithFailedRefunds returns contract ids whose deposit refund
// previously failed and whose contract has already closed. These are retried
// by the next expiry sweep pass.
func (r *Repository) ListContractsWithFailedRefunds(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.contract_id
		FROM transactions t
		JOIN contracts c ON c.id = t.contract_id
		WHERE t.refund_status = 'failed'
		  AND c.status IN ('expired', 'terminated')
		ORDER BY t.updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("payment: list failed refunds: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("payment: scan failed refund: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payment: iterate failed refunds: %w", err)
	}
	return out, nil
}
