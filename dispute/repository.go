package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("dispute: not found")
	// ErrForbidden signals the filer is not a party to the contract.
	ErrForbidden = errors.New("dispute: forbidden")
	// ErrAlreadyResolved signals a second decision on a resolved dispute.
	ErrAlreadyResolved = errors.New("dispute: already resolved")
)

const disputeColumns = `id, contract_id, disputer_id, transaction_id, reason, evidence_urls,
       status::text, resolution, admin_reason, resolved_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.ContractID, &rec.DisputerID, &rec.TransactionID,
		&rec.Reason, &rec.EvidenceURLs, &rec.Status,
		&rec.Resolution, &rec.AdminReason, &rec.ResolvedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// Create files a dispute. The insert verifies in one statement that the
// disputer is a party to the contract and that the transaction backs it.
func (r *Repository) Create(ctx context.Context, params FileParams) (Record, error) {
	query := `
		INSERT INTO disputes (contract_id, disputer_id, transaction_id, reason, evidence_urls)
		SELECT c.id, $2, t.id, $4, $5
		FROM contracts c
		JOIN transactions t ON t.contract_id = c.id AND t.id = $3
		WHERE c.id = $1 AND (c.tenant_id = $2 OR c.owner_id = $2)
		RETURNING ` + disputeColumns

	evidence := params.EvidenceURLs
	if evidence == nil {
		evidence = []string{}
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx, query,
		params.ContractID, params.DisputerID, params.TransactionID, params.Reason, evidence))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrForbidden
		}
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	return rec, nil
}

// Get returns the dispute by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: get: %w", err)
	}
	return rec, nil
}

// ListByContract returns disputes filed against a contract, newest first.
func (r *Repository) ListByContract(ctx context.Context, contractID string) ([]Record, error) {
	query := `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE contract_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 4)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// Resolve records the admin decision. The conditional update only matches a
// pending dispute, so resolution happens exactly once; the follow-up read
// distinguishes an unknown dispute from a double decision.
func (r *Repository) Resolve(ctx context.Context, id string, resolution Resolution, adminReason string) (Record, error) {
	status := StatusRejected
	if resolution == ResolutionDisputerWins {
		status = StatusResolved
	}

	query := `
		UPDATE disputes
		SET status = $2::dispute_status,
		    resolution = $3,
		    admin_reason = $4,
		    resolved_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + disputeColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id, status, resolution, adminReason))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}

	var current Status
	if err := r.pool.QueryRow(ctx, `SELECT status::text FROM disputes WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: resolve fetch: %w", err)
	}
	return Record{}, fmt.Errorf("%w: status %s", ErrAlreadyResolved, current)
}
