package sweep

import (
	"context"
	"sync"
	"testing"
	"time"

	"leaseflow/contract"
	"leaseflow/notify"
)

func TestDayWindowUTC(t *testing.T) {
	// 22:30 UTC; the 1-day window must be the whole next UTC calendar day.
	now := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)
	from, to := dayWindowUTC(now, 1)

	if !from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start: %v", from)
	}
	if !to.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end: %v", to)
	}

	// Non-UTC clock input still yields UTC windows.
	local := now.In(time.FixedZone("UTC+5", 5*3600))
	fromLocal, toLocal := dayWindowUTC(local, 1)
	if !fromLocal.Equal(from) || !toLocal.Equal(to) {
		t.Fatalf("expected identical window for equivalent instant, got [%v, %v)", fromLocal, toLocal)
	}
}

func TestReminderRun_NotifiesPerOffset(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	source := &windowSource{contracts: map[int][]contract.Contract{
		7: {{ID: "a", TenantID: "t-a", OwnerID: "o-a", Status: contract.StatusActive, EndDate: now.AddDate(0, 0, 7)}},
		1: {{ID: "b", TenantID: "t-b", OwnerID: "o-b", Status: contract.StatusActive, EndDate: now.AddDate(0, 0, 1)}},
	}}
	notifier := &recordingNotifier{}
	sweep := NewReminder(source, notifier, nil)

	report := sweep.Run(context.Background(), now)

	if counts := report.Counts(); counts[OutcomeReminded] != 2 {
		t.Fatalf("expected 2 reminders, got %v", counts)
	}

	sends := notifier.sends()
	if len(sends) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sends))
	}
	for _, s := range sends {
		if s.template != notify.TemplateExpiryReminder {
			t.Fatalf("unexpected template %q", s.template)
		}
		days, ok := s.data["days_left"].(int)
		if !ok || (days != 7 && days != 1) {
			t.Fatalf("unexpected days_left payload: %v", s.data["days_left"])
		}
	}
}

func TestReminderRun_SkipsLegitimateRenewal(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 0, 3)
	withOverlay := contract.Contract{
		ID: "a", Status: contract.StatusActive, EndDate: end,
		PendingUpdate: &contract.PendingUpdate{NewEndDate: now.AddDate(0, 0, 90), SubmittedAt: now.AddDate(0, 0, -1)},
	}
	staleOverlay := contract.Contract{
		ID: "b", Status: contract.StatusActive, EndDate: end,
		PendingUpdate: &contract.PendingUpdate{NewEndDate: now.AddDate(0, 0, -1), SubmittedAt: now.AddDate(0, 0, -30)},
	}
	source := &windowSource{contracts: map[int][]contract.Contract{3: {withOverlay, staleOverlay}}}
	notifier := &recordingNotifier{}
	sweep := NewReminder(source, notifier, nil)

	report := sweep.Run(context.Background(), now)

	counts := report.Counts()
	if counts[OutcomeSkipped] != 1 {
		t.Fatalf("expected the legitimate renewal skipped, got %v", counts)
	}
	// A stale overlay does not supersede expiry, so its party is reminded.
	if counts[OutcomeReminded] != 1 {
		t.Fatalf("expected the stale overlay reminded, got %v", counts)
	}
}

func TestReminderRun_NotifyFailureRecorded(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	source := &windowSource{contracts: map[int][]contract.Contract{
		1: {{ID: "a", Status: contract.StatusActive, EndDate: now.AddDate(0, 0, 1)}},
	}}
	notifier := &recordingNotifier{err: context.DeadlineExceeded}
	sweep := NewReminder(source, notifier, nil)

	report := sweep.Run(context.Background(), now)

	if counts := report.Counts(); counts[OutcomeNotifyFailed] != 1 {
		t.Fatalf("expected notify failure recorded, got %v", counts)
	}
}

// windowSource returns the contracts whose end date falls inside the
// requested window, keyed by reminder offset for test setup convenience.
type windowSource struct {
	contracts map[int][]contract.Contract
}

func (w *windowSource) ListEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, cs := range w.contracts {
		for _, c := range cs {
			if !c.EndDate.Before(from) && c.EndDate.Before(to) {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type sentNotification struct {
	template string
	data     map[string]any
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []sentNotification
	err   error
}

func (r *recordingNotifier) NotifyParties(ctx context.Context, tenantID, ownerID, roomID, template string, data map[string]any) error {
	r.mu.Lock()
	r.calls = append(r.calls, sentNotification{template: template, data: data})
	r.mu.Unlock()
	return r.err
}

func (r *recordingNotifier) sends() []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentNotification, len(r.calls))
	copy(out, r.calls)
	return out
}
