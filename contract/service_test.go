package contract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestHandleDepositSettled_Success(t *testing.T) {
	pool := &fakePool{}
	store := &fakeStore{
		contracts: map[string]Contract{
			"c1": {ID: "c1", RoomID: "room-1", Status: StatusPending, Version: 1},
		},
	}
	deposits := &fakeDeposits{}
	svc := NewService(pool, store, deposits, nil)

	c, err := svc.HandleDepositSettled(context.Background(), DepositSettledRequest{
		ContractID:     "c1",
		IdempotencyKey: "evt-1",
		AmountCents:    50_000,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if pool.tx == nil {
		t.Fatal("expected Begin to provide transaction")
	}
	if !pool.tx.committed {
		t.Error("expected commit to be called")
	}
	if c.Status != StatusActive {
		t.Errorf("expected activated contract, got %s", c.Status)
	}
	if !deposits.recorded {
		t.Error("expected deposit transaction to be recorded")
	}
	if !store.staleDeleted {
		t.Error("expected stale pending contracts to be cleared")
	}
}

func TestHandleDepositSettled_IdempotentReplay(t *testing.T) {
	pool := &fakePool{}
	store := &fakeStore{
		insertErr: ErrDuplicateIdempotencyKey,
		contracts: map[string]Contract{
			"c1": {ID: "c1", Status: StatusActive, Version: 2},
		},
	}
	deposits := &fakeDeposits{}
	svc := NewService(pool, store, deposits, nil)

	c, err := svc.HandleDepositSettled(context.Background(), DepositSettledRequest{
		ContractID:     "c1",
		IdempotencyKey: "evt-1",
		AmountCents:    50_000,
	})
	if err != nil {
		t.Fatalf("expected replay to succeed, got %v", err)
	}

	if !pool.tx.rolled {
		t.Error("expected rollback to be called")
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped on idempotent replay")
	}
	if store.activated {
		t.Error("expected activation to be skipped when key duplicates")
	}
	if deposits.recorded {
		t.Error("expected deposit recording to be skipped when key duplicates")
	}
	if c.Status != StatusActive {
		t.Errorf("expected current contract state returned, got %s", c.Status)
	}
}

func TestHandleDepositSettled_Validation(t *testing.T) {
	svc := NewService(&fakePool{}, &fakeStore{}, &fakeDeposits{}, nil)

	cases := []DepositSettledRequest{
		{ContractID: "c1", AmountCents: 100},                          // missing key
		{IdempotencyKey: "evt-1", AmountCents: 100},                   // missing contract
		{ContractID: "c1", IdempotencyKey: "evt-1", AmountCents: 0},   // zero amount
		{ContractID: "c1", IdempotencyKey: "evt-1", AmountCents: -10}, // negative amount
	}
	for _, req := range cases {
		if _, err := svc.HandleDepositSettled(context.Background(), req); err == nil {
			t.Fatalf("expected validation error for %+v", req)
		}
	}
}

func TestHandleDepositSettled_ActivationFailureRollsBack(t *testing.T) {
	pool := &fakePool{}
	store := &fakeStore{
		activateErr: ErrInvalidTransition,
		contracts:   map[string]Contract{"c1": {ID: "c1", Status: StatusActive}},
	}
	svc := NewService(pool, store, &fakeDeposits{}, nil)

	_, err := svc.HandleDepositSettled(context.Background(), DepositSettledRequest{
		ContractID:     "c1",
		IdempotencyKey: "evt-1",
		AmountCents:    100,
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if pool.tx.committed {
		t.Error("expected commit to be skipped on activation failure")
	}
	if !pool.tx.rolled {
		t.Error("expected rollback after activation failure")
	}
}

func TestService_Get_PartyCheck(t *testing.T) {
	store := &fakeStore{
		contracts: map[string]Contract{
			"c1": {ID: "c1", TenantID: "tenant-1", OwnerID: "owner-1", Status: StatusActive},
		},
	}
	svc := NewService(&fakePool{}, store, &fakeDeposits{}, nil)

	for _, caller := range []string{"tenant-1", "owner-1"} {
		if _, err := svc.Get(context.Background(), "c1", caller); err != nil {
			t.Fatalf("caller %s: %v", caller, err)
		}
	}

	if _, err := svc.Get(context.Background(), "c1", "stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_SubmitRenewal(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(30 * 24 * time.Hour)
	store := &fakeStore{
		contracts: map[string]Contract{
			"c1": {ID: "c1", TenantID: "tenant-1", OwnerID: "owner-1", Status: StatusActive, EndDate: end, Version: 1},
		},
	}
	svc := NewService(&fakePool{}, store, &fakeDeposits{}, nil).
		WithClock(func() time.Time { return now })

	c, err := svc.SubmitRenewal(context.Background(), "c1", "tenant-1", end.Add(90*24*time.Hour))
	if err != nil {
		t.Fatalf("submit renewal: %v", err)
	}
	if c.PendingUpdate == nil || !c.PendingUpdate.SubmittedAt.Equal(now) {
		t.Fatalf("expected overlay stamped with service clock, got %+v", c.PendingUpdate)
	}
	if !store.updated {
		t.Fatal("expected overlay to be persisted")
	}

	if _, err := svc.SubmitRenewal(context.Background(), "c1", "stranger", end.Add(90*24*time.Hour)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_ExpireOrRenew_SkipsPersistOnNone(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	svc := NewService(&fakePool{}, store, &fakeDeposits{}, nil)

	c := Contract{ID: "c1", Status: StatusActive, EndDate: now.Add(24 * time.Hour)}
	_, out, err := svc.ExpireOrRenew(context.Background(), c, now)
	if err != nil {
		t.Fatalf("expire or renew: %v", err)
	}
	if out != OutcomeNone {
		t.Fatalf("expected none, got %s", out)
	}
	if store.updated {
		t.Fatal("expected no write for a not-due contract")
	}
}

func TestService_TerminateByDispute_RetriesOnceOnConflict(t *testing.T) {
	store := &fakeStore{
		contracts: map[string]Contract{
			"c1": {ID: "c1", Status: StatusActive, Version: 1},
		},
		updateErrs: []error{ErrConflict},
	}
	svc := NewService(&fakePool{}, store, &fakeDeposits{}, nil)

	c, err := svc.TerminateByDispute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if c.Status != StatusTerminated {
		t.Fatalf("expected terminated, got %s", c.Status)
	}
	if store.updateCalls != 2 {
		t.Fatalf("expected 2 update attempts, got %d", store.updateCalls)
	}
}

func TestService_TerminateByDispute_SecondConflictSurfaces(t *testing.T) {
	store := &fakeStore{
		contracts: map[string]Contract{
			"c1": {ID: "c1", Status: StatusActive, Version: 1},
		},
		updateErrs: []error{ErrConflict, ErrConflict},
	}
	svc := NewService(&fakePool{}, store, &fakeDeposits{}, nil)

	if _, err := svc.TerminateByDispute(context.Background(), "c1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

type fakeStore struct {
	contracts   map[string]Contract
	insertErr   error
	activateErr error
	updateErrs  []error

	activated    bool
	updated      bool
	updateCalls  int
	staleDeleted bool
}

func (f *fakeStore) Create(ctx context.Context, params CreateParams) (Contract, error) {
	panic("not implemented")
}

func (f *fakeStore) Get(ctx context.Context, id string) (Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return Contract{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) ListByParty(ctx context.Context, userID string, limit int) ([]Contract, error) {
	panic("not implemented")
}

func (f *fakeStore) Update(ctx context.Context, c *Contract) error {
	f.updateCalls++
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	f.updated = true
	c.Version++
	if f.contracts != nil {
		f.contracts[c.ID] = *c
	}
	return nil
}

func (f *fakeStore) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) error {
	return f.insertErr
}

func (f *fakeStore) ActivateTx(ctx context.Context, tx pgx.Tx, id string) (Contract, error) {
	if f.activateErr != nil {
		return Contract{}, f.activateErr
	}
	f.activated = true
	c, ok := f.contracts[id]
	if !ok {
		return Contract{}, ErrNotFound
	}
	c.Status = StatusActive
	c.Version++
	f.contracts[id] = c
	return c, nil
}

func (f *fakeStore) DeleteStalePendingTx(ctx context.Context, tx pgx.Tx, roomID, keepContractID string) (int64, error) {
	f.staleDeleted = true
	return 1, nil
}

type fakeDeposits struct {
	recorded bool
}

func (f *fakeDeposits) RecordDepositTx(ctx context.Context, tx pgx.Tx, contractID string, amountCents int64) error {
	f.recorded = true
	return nil
}

type fakePool struct {
	tx *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	return f.tx, nil
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
