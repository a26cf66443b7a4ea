package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/support"
)

// SupportRepository implements support.Repository for PostgreSQL.
type SupportRepository struct {
	conn *Connection
}

// NewSupportRepository creates a new SupportRepository.
func NewSupportRepository(conn *Connection) *SupportRepository {
	return &SupportRepository{conn: conn}
}

const ticketColumns = `id, kind, telegram_id, user_name, platform_id, body, created_at, answered_at, answered_by, answer`

// Create implements support.Repository.
func (r *SupportRepository) Create(ctx context.Context, t support.Ticket) error {
	query := `
		INSERT INTO support_tickets (id, kind, telegram_id, user_name, platform_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.conn.Exec(ctx, query,
		t.ID, string(t.Kind), t.TelegramID, t.UserName, t.PlatformID, t.Text, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert support ticket: %w", err)
	}
	return nil
}

// Answer implements support.Repository.
func (r *SupportRepository) Answer(ctx context.Context, telegramID, adminID int64, answer string, at time.Time) (support.Ticket, error) {
	var out support.Ticket

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+ticketColumns+`
			FROM support_tickets
			WHERE telegram_id = $1 AND answered_at IS NULL
			ORDER BY created_at DESC
			LIMIT 1
			FOR UPDATE
		`, telegramID)

		t, err := scanTicket(row)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE support_tickets SET answered_at = $2, answered_by = $3, answer = $4 WHERE id = $1
		`, t.ID, at, adminID, answer); err != nil {
			return fmt.Errorf("failed to answer support ticket: %w", err)
		}

		t.AnsweredAt = &at
		t.AnsweredBy = adminID
		t.Answer = answer
		out = t
		return nil
	})

	if IsNoRows(err) {
		return support.Ticket{}, shared.NewDomainError("postgres", "Answer", shared.ErrNotFound, "no open ticket")
	}
	if err != nil {
		return support.Ticket{}, err
	}
	return out, nil
}

// ListOpen implements support.Repository.
func (r *SupportRepository) ListOpen(ctx context.Context, limit int) ([]support.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM support_tickets
		WHERE answered_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query open tickets: %w", err)
	}
	defer rows.Close()

	var tickets []support.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func scanTicket(row pgx.Row) (support.Ticket, error) {
	var (
		t          support.Ticket
		kind       string
		answeredBy *int64
		answer     *string
	)
	err := row.Scan(
		&t.ID,
		&kind,
		&t.TelegramID,
		&t.UserName,
		&t.PlatformID,
		&t.Text,
		&t.CreatedAt,
		&t.AnsweredAt,
		&answeredBy,
		&answer,
	)
	if err != nil {
		return support.Ticket{}, err
	}

	t.Kind = support.Kind(kind)
	if answeredBy != nil {
		t.AnsweredBy = *answeredBy
	}
	if answer != nil {
		t.Answer = *answer
	}
	return t, nil
}
