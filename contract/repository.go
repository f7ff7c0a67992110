package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrRoomNotFound signals the referenced room does not exist.
	ErrRoomNotFound = errors.New("contract: room not found")
	// ErrDuplicateIdempotencyKey signals the idempotency insert hit the existing key guardrail.
	ErrDuplicateIdempotencyKey = errors.New("contract: duplicate idempotency key")
)

const contractColumns = `id, tenant_id, owner_id, room_id, start_date, end_date, status::text,
       tenant_signed, owner_signed, pending_end_date, pending_submitted_at, version, created_at, updated_at`

// Repository handles contract persistence over PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContract(row pgx.Row) (Contract, error) {
	var (
		c           Contract
		pendEnd     *time.Time
		pendSubmits *time.Time
	)
	if err := row.Scan(
		&c.ID, &c.TenantID, &c.OwnerID, &c.RoomID,
		&c.StartDate, &c.EndDate, &c.Status,
		&c.TenantSigned, &c.OwnerSigned,
		&pendEnd, &pendSubmits,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return Contract{}, err
	}
	if pendEnd != nil && pendSubmits != nil {
		c.PendingUpdate = &PendingUpdate{NewEndDate: *pendEnd, SubmittedAt: *pendSubmits}
	}
	return c, nil
}

// Create opens a pending contract for the tenant. The room's owner is resolved
// inside the insert so a missing room surfaces as ErrRoomNotFound.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Contract, error) {
	const query = `
		INSERT INTO contracts (tenant_id, owner_id, room_id, start_date, end_date, status, tenant_signed)
		SELECT $1, rm.owner_id, rm.id, $2, $3, 'pending'::contract_status, true
		FROM rooms rm
		WHERE rm.id = $4
		RETURNING ` + contractColumns

	c, err := scanContract(r.pool.QueryRow(ctx, query,
		params.TenantID, params.StartDate, params.EndDate, params.RoomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrRoomNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return Contract{}, ErrInvalidDates
		}
		return Contract{}, fmt.Errorf("contract: create: %w", err)
	}
	return c, nil
}

// Get returns the contract by id.
func (r *Repository) Get(ctx context.Context, id string) (Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: get: %w", err)
	}
	return c, nil
}

// ListByParty returns contracts where the user is tenant or owner.
func (r *Repository) ListByParty(ctx context.Context, userID string, limit int) ([]Contract, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE tenant_id = $1 OR owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("contract: list by party: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// ListDue returns active contracts whose end date has been reached.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE status = 'active' AND end_date <= $1
		ORDER BY end_date
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("contract: list due: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// ListEndingBetween returns active contracts with end_date in [from, to).
func (r *Repository) ListEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE status = 'active' AND end_date >= $1 AND end_date < $2
		ORDER BY end_date
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("contract: list ending between: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

func collectContracts(rows pgx.Rows) ([]Contract, error) {
	out := make([]Contract, 0, 8)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: iterate: %w", err)
	}
	return out, nil
}

// Update persists a transition computed by the state machine. The write is
// conditioned on the version the caller read; a lost race surfaces as
// ErrConflict so sweeps can skip and re-evaluate next run.
func (r *Repository) Update(ctx context.Context, c *Contract) error {
	const query = `
		UPDATE contracts
		SET status = $1::contract_status,
		    end_date = $2,
		    pending_end_date = $3,
		    pending_submitted_at = $4,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at`

	var pendEnd, pendSubmitted *time.Time
	if c.PendingUpdate != nil {
		pendEnd = &c.PendingUpdate.NewEndDate
		pendSubmitted = &c.PendingUpdate.SubmittedAt
	}

	err := r.pool.QueryRow(ctx, query,
		c.Status, c.EndDate, pendEnd, pendSubmitted, c.ID, c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("contract: update: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
		return fmt.Errorf("contract: update exists check: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// InsertIdempotencyKey reserves the key inside the active transaction.
func (r *Repository) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	if key == "" {
		return fmt.Errorf("contract: empty idempotency key")
	}
	if _, err := tx.Exec(ctx, `INSERT INTO idempotency (key) VALUES ($1)`, key); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("contract: insert idempotency key: %w", err)
	}
	return nil
}

// ActivateTx flips a pending contract to active inside the caller's
// transaction. A non-pending contract surfaces as ErrInvalidTransition.
func (r *Repository) ActivateTx(ctx context.Context, tx pgx.Tx, id string) (Contract, error) {
	query := `
		UPDATE contracts
		SET status = 'active'::contract_status,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + contractColumns

	c, err := scanContract(tx.QueryRow(ctx, query, id))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, fmt.Errorf("contract: activate: %w", err)
	}

	var status Status
	if err := tx.QueryRow(ctx, `SELECT status::text FROM contracts WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: activate fetch: %w", err)
	}
	return Contract{}, fmt.Errorf("%w: activate from %s", ErrInvalidTransition, status)
}

// DeleteStalePendingTx removes other pending contracts on the room once one of
// them activates. Bulk housekeeping, not a state-machine transition.
func (r *Repository) DeleteStalePendingTx(ctx context.Context, tx pgx.Tx, roomID, keepContractID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM contracts
		WHERE room_id = $1 AND status = 'pending' AND id <> $2
	`, roomID, keepContractID)
	if err != nil {
		return 0, fmt.Errorf("contract: delete stale pending: %w", err)
	}
	return tag.RowsAffected(), nil
}
