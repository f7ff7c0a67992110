package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNotifyParties_SendsToBoth(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, directory{
		"tenant-1": {UserID: "tenant-1", Email: "tenant@example.com", Name: "Tenant"},
		"owner-1":  {UserID: "owner-1", Email: "owner@example.com", Name: "Owner"},
	}, labels{"room-1": "Room 2B, Maple Court"}, nil)

	err := svc.NotifyParties(context.Background(), "tenant-1", "owner-1", "room-1",
		TemplateContractExpired, map[string]any{"contract_id": "c1"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	sent := sender.sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sent))
	}
	for _, s := range sent {
		if s.data["room"] != "Room 2B, Maple Court" {
			t.Fatalf("expected room label in payload, got %v", s.data["room"])
		}
		if s.data["contract_id"] != "c1" {
			t.Fatalf("expected contract id in payload, got %v", s.data["contract_id"])
		}
	}
}

func TestNotifyParties_OneFailureDoesNotBlockOther(t *testing.T) {
	sender := &captureSender{failFor: "tenant@example.com"}
	svc := NewService(sender, directory{
		"tenant-1": {UserID: "tenant-1", Email: "tenant@example.com"},
		"owner-1":  {UserID: "owner-1", Email: "owner@example.com"},
	}, labels{}, nil)

	err := svc.NotifyParties(context.Background(), "tenant-1", "owner-1", "room-1",
		TemplateExpiryReminder, nil)
	if err == nil {
		t.Fatal("expected joined error for the failed recipient")
	}

	sent := sender.sent()
	if len(sent) != 1 || sent[0].recipient.Email != "owner@example.com" {
		t.Fatalf("expected owner still notified, got %+v", sent)
	}
}

func TestNotifyParties_RoomLookupFailureNonFatal(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, directory{
		"tenant-1": {UserID: "tenant-1", Email: "tenant@example.com"},
		"owner-1":  {UserID: "owner-1", Email: "owner@example.com"},
	}, labels{}, nil) // empty: lookup fails

	err := svc.NotifyParties(context.Background(), "tenant-1", "owner-1", "missing-room",
		TemplateContractRenewed, nil)
	if err != nil {
		t.Fatalf("expected delivery without room label, got %v", err)
	}
	if len(sender.sent()) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sender.sent()))
	}
}

func TestNotifyParties_UnknownUser(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, directory{
		"owner-1": {UserID: "owner-1", Email: "owner@example.com"},
	}, labels{}, nil)

	err := svc.NotifyParties(context.Background(), "ghost", "owner-1", "room-1",
		TemplateContractTerminated, nil)
	if err == nil {
		t.Fatal("expected error for unresolvable recipient")
	}
	if len(sender.sent()) != 1 {
		t.Fatalf("expected owner still notified, got %d sends", len(sender.sent()))
	}
}

type directory map[string]Recipient

func (d directory) Lookup(ctx context.Context, userID string) (Recipient, error) {
	r, ok := d[userID]
	if !ok {
		return Recipient{}, errors.New("unknown user")
	}
	return r, nil
}

type labels map[string]string

func (l labels) RoomLabel(ctx context.Context, roomID string) (string, error) {
	label, ok := l[roomID]
	if !ok {
		return "", errors.New("unknown room")
	}
	return label, nil
}

type capturedSend struct {
	recipient Recipient
	template  string
	data      map[string]any
}

type captureSender struct {
	mu      sync.Mutex
	calls   []capturedSend
	failFor string
}

func (c *captureSender) Send(ctx context.Context, recipient Recipient, template string, data map[string]any) error {
	if recipient.Email == c.failFor {
		return errors.New("smtp unavailable")
	}
	c.mu.Lock()
	c.calls = append(c.calls, capturedSend{recipient: recipient, template: template, data: data})
	c.mu.Unlock()
	return nil
}

func (c *captureSender) sent() []capturedSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]capturedSend, len(c.calls))
	copy(out, c.calls)
	return out
}
