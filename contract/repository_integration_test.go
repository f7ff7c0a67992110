package contract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository_Integration connects to a real PostgreSQL via DATABASE_URL and
// verifies the version-conditioned write plus the sweep selection queries.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	var schemaReady bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'contracts')`).Scan(&schemaReady); err != nil {
		t.Fatalf("check schema: %v", err)
	}
	if !schemaReady {
		t.Skip("database schema missing; apply migrations/ first")
	}

	// Seed the rows the contract depends on.
	suffix := time.Now().UnixNano()
	var tenantID, ownerID, areaID, roomID string
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, 'Tenant', 'x', 'tenant') RETURNING id`,
		fmt.Sprintf("tenant+%d@example.com", suffix)).Scan(&tenantID); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, 'Owner', 'x', 'owner') RETURNING id`,
		fmt.Sprintf("owner+%d@example.com", suffix)).Scan(&ownerID); err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO housing_areas (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Area %d", suffix)).Scan(&areaID); err != nil {
		t.Fatalf("seed area: %v", err)
	}
	if err := pool.QueryRow(ctx, `INSERT INTO rooms (housing_area_id, owner_id, name) VALUES ($1, $2, 'Room') RETURNING id`,
		areaID, ownerID).Scan(&roomID); err != nil {
		t.Fatalf("seed room: %v", err)
	}

	repo := NewRepository(pool)

	now := time.Now().UTC().Truncate(time.Second)
	c, err := repo.Create(ctx, CreateParams{
		TenantID:  tenantID,
		RoomID:    roomID,
		StartDate: now.AddDate(0, -6, 0),
		EndDate:   now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM contracts WHERE id = $1`, c.ID)
		pool.Exec(ctx2, `DELETE FROM rooms WHERE id = $1`, roomID)
		pool.Exec(ctx2, `DELETE FROM housing_areas WHERE id = $1`, areaID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, tenantID, ownerID)
	})

	if c.OwnerID != ownerID {
		t.Fatalf("expected owner resolved from room, got %s", c.OwnerID)
	}
	if c.Version != 1 || c.Status != StatusPending {
		t.Fatalf("unexpected initial state: version=%d status=%s", c.Version, c.Status)
	}

	// Unknown room surfaces as ErrRoomNotFound.
	if _, err := repo.Create(ctx, CreateParams{
		TenantID:  tenantID,
		RoomID:    "00000000-0000-0000-0000-000000000000",
		StartDate: now,
		EndDate:   now.AddDate(0, 6, 0),
	}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	// Flip to active directly so the selection queries see it.
	if _, err := pool.Exec(ctx, `UPDATE contracts SET status = 'active' WHERE id = $1`, c.ID); err != nil {
		t.Fatalf("force active: %v", err)
	}
	c.Status = StatusActive

	due, err := repo.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if !containsContract(due, c.ID) {
		t.Fatal("expected overdue contract selected by ListDue")
	}

	// ListEndingBetween uses a half-open window.
	ending, err := repo.ListEndingBetween(ctx, c.EndDate, c.EndDate.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("list ending: %v", err)
	}
	if !containsContract(ending, c.ID) {
		t.Fatal("expected contract inside [from, to) window")
	}
	ending, err = repo.ListEndingBetween(ctx, c.EndDate.Add(-time.Minute), c.EndDate, 10)
	if err != nil {
		t.Fatalf("list ending (exclusive): %v", err)
	}
	if containsContract(ending, c.ID) {
		t.Fatal("expected end date excluded at the window's upper bound")
	}

	// Version-conditioned write: a stale version must surface ErrConflict and
	// leave the row untouched.
	stale := c
	stale.Status = StatusExpired
	stale.Version = c.Version - 1
	if err := repo.Update(ctx, &stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	fresh := c
	fresh.Status = StatusExpired
	if err := repo.Update(ctx, &fresh); err != nil {
		t.Fatalf("update: %v", err)
	}
	if fresh.Version != c.Version+1 {
		t.Fatalf("expected version bump to %d, got %d", c.Version+1, fresh.Version)
	}

	// Unknown id surfaces ErrNotFound rather than ErrConflict.
	ghost := c
	ghost.ID = "00000000-0000-0000-0000-000000000000"
	if err := repo.Update(ctx, &ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func containsContract(cs []Contract, id string) bool {
	for _, c := range cs {
		if c.ID == id {
			return true
		}
	}
	return false
}
