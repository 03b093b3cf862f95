package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenleaf/storefront-api/internal/model"
)

type TicketRepository interface {
	Create(ctx context.Context, ticket *model.SupportTicket) error
	ListAll(ctx context.Context) ([]model.SupportTicket, error)
	Resolve(ctx context.Context, id uuid.UUID) error
}

type pgTicketRepo struct{ pool *pgxpool.Pool }

func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &pgTicketRepo{pool: pool}
}

func (r *pgTicketRepo) Create(ctx context.Context, ticket *model.SupportTicket) error {
	ticket.ID = uuid.New()
	ticket.Status = model.TicketOpen
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tickets (id, user_id, user_name, email, subject, message, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING created_at`,
		ticket.ID, ticket.UserID, ticket.UserName, ticket.Email, ticket.Subject, ticket.Message, ticket.Status,
	).Scan(&ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *pgTicketRepo) ListAll(ctx context.Context) ([]model.SupportTicket, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, user_name, email, subject, message, status, created_at
		 FROM tickets ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.SupportTicket
	for rows.Next() {
		var t model.SupportTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserName, &t.Email, &t.Subject, &t.Message, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *pgTicketRepo) Resolve(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $2 WHERE id = $1`, id, model.TicketResolved,
	)
	if err != nil {
		return fmt.Errorf("resolve ticket: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
