// Package notify fans out lifecycle notifications to the parties of a
// contract. Delivery itself belongs to an external collaborator; this package
// resolves recipients and room context and isolates per-recipient failures.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Templates rendered by the external sender.
const (
	TemplateContractRenewed    = "contract_renewed"
	TemplateContractExpired    = "contract_expired"
	TemplateContractTerminated = "contract_terminated"
	TemplateExpiryReminder     = "expiry_reminder"
)

// Recipient is a resolved notification target.
type Recipient struct {
	UserID string
	Email  string
	Name   string
}

// Sender is the external notification collaborator.
type Sender interface {
	Send(ctx context.Context, recipient Recipient, template string, data map[string]any) error
}

// UserDirectory resolves a user id to a deliverable recipient.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (Recipient, error)
}

// RoomDirectory resolves a room id to a human-readable label for message
// content.
type RoomDirectory interface {
	RoomLabel(ctx context.Context, roomID string) (string, error)
}

// Service notifies tenant and owner separately: one party's failure never
// blocks the other's delivery.
type Service struct {
	sender Sender
	users  UserDirectory
	rooms  RoomDirectory
	logger *slog.Logger
}

func NewService(sender Sender, users UserDirectory, rooms RoomDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{sender: sender, users: users, rooms: rooms, logger: logger}
}

// NotifyParties sends the template to both the tenant and the owner. All
// failures are attempted through and returned joined; callers treat the
// result as a log-and-continue signal, never an abort.
func (s *Service) NotifyParties(ctx context.Context, tenantID, ownerID, roomID, template string, data map[string]any) error {
	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}
	if label, err := s.rooms.RoomLabel(ctx, roomID); err != nil {
		s.logger.Warn("room lookup failed, sending without room label",
			"roomId", roomID, "template", template, "error", err)
	} else {
		payload["room"] = label
	}

	var errs []error
	for _, userID := range []string{tenantID, ownerID} {
		if err := s.notifyOne(ctx, userID, template, payload); err != nil {
			s.logger.Warn("notification failed",
				"userId", userID, "template", template, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) notifyOne(ctx context.Context, userID, template string, data map[string]any) error {
	recipient, err := s.users.Lookup(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify: lookup %s: %w", userID, err)
	}
	if err := s.sender.Send(ctx, recipient, template, data); err != nil {
		return fmt.Errorf("notify: send %s to %s: %w", template, recipient.Email, err)
	}
	return nil
}

// LogSender is a development Sender that records sends in the log instead of
// delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (l LogSender) Send(ctx context.Context, recipient Recipient, template string, data map[string]any) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification",
		"to", recipient.Email, "name", recipient.Name, "template", template, "data", data)
	return nil
}
