package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/repository"
)

// TicketService handles support tickets: customers open them, admins list and
// resolve them.
type TicketService struct {
	ticketRepo repository.TicketRepository
}

func NewTicketService(ticketRepo repository.TicketRepository) *TicketService {
	return &TicketService{ticketRepo: ticketRepo}
}

func (s *TicketService) Create(ctx context.Context, userID uuid.UUID, userName, email, subject, message string) (*model.SupportTicket, error) {
	ticket := &model.SupportTicket{
		UserID:   userID,
		UserName: userName,
		Email:    email,
		Subject:  subject,
		Message:  message,
	}
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return ticket, nil
}

func (s *TicketService) ListAll(ctx context.Context) ([]model.SupportTicket, error) {
	return s.ticketRepo.ListAll(ctx)
}

func (s *TicketService) Resolve(ctx context.Context, id uuid.UUID) error {
	return s.ticketRepo.Resolve(ctx, id)
}
