// Package support describes the support ledger: every support message and
// deletion request a user sent, and whether an admin answered it.
package support

import (
	"context"
	"time"
)

// Kind tells what the user asked for.
type Kind string

const (
	KindMessage  Kind = "message"
	KindDeletion Kind = "deletion"
)

// Ticket is one ledger row.
type Ticket struct {
	ID         string
	Kind       Kind
	TelegramID int64
	UserName   string
	PlatformID string
	Text       string
	CreatedAt  time.Time

	AnsweredAt *time.Time
	AnsweredBy int64
	Answer     string
}

// IsOpen reports whether no admin answered the ticket yet.
func (t Ticket) IsOpen() bool {
	return t.AnsweredAt == nil
}

// Repository stores tickets.
type Repository interface {
	// Create inserts a ticket. Creating an existing ID is a no-op.
	Create(ctx context.Context, t Ticket) error

	// Answer marks the newest open ticket of telegramID as answered.
	// It returns shared.ErrNotFound when the user has no open ticket.
	Answer(ctx context.Context, telegramID, adminID int64, answer string, at time.Time) (Ticket, error)

	// ListOpen returns open tickets, oldest first.
	ListOpen(ctx context.Context, limit int) ([]Ticket, error)
}
