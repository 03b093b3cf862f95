package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenleaf/storefront-api/internal/assistant"
	"github.com/greenleaf/storefront-api/internal/dto"
)

type AssistantHandler struct {
	client *assistant.Client
}

func NewAssistantHandler(client *assistant.Client) *AssistantHandler {
	return &AssistantHandler{client: client}
}

func (h *AssistantHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history := make([]assistant.Turn, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, assistant.Turn{Role: turn.Role, Text: turn.Text})
	}

	reply, err := h.client.Reply(c.Request.Context(), req.Message, history)
	if err != nil {
		if errors.Is(err, assistant.ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "assistant unavailable, try again later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ChatResponse{Reply: reply})
}
