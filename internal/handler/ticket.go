package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/greenleaf/storefront-api/internal/dto"
	"github.com/greenleaf/storefront-api/internal/middleware"
	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/service"
)

type TicketHandler struct {
	svc   *service.TicketService
	flows *service.AuthFlowService
}

func NewTicketHandler(svc *service.TicketService, flows *service.AuthFlowService) *TicketHandler {
	return &TicketHandler{svc: svc, flows: flows}
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req dto.CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.flows.CurrentSession(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ticket, err := h.svc.Create(c.Request.Context(), session.User.ID, session.User.Name, session.User.Email, req.Subject, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, toTicketResponse(ticket))
}

func (h *TicketHandler) ListAll(c *gin.Context) {
	tickets, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, toTicketResponse(&t))
	}
	c.JSON(http.StatusOK, gin.H{"tickets": items, "total": len(items)})
}

func (h *TicketHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket ID"})
		return
	}
	if err := h.svc.Resolve(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ticket resolved"})
}

func toTicketResponse(t *model.SupportTicket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:        t.ID,
		UserName:  t.UserName,
		Email:     t.Email,
		Subject:   t.Subject,
		Message:   t.Message,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
	}
}
