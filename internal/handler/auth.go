package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenleaf/storefront-api/internal/dto"
	"github.com/greenleaf/storefront-api/internal/middleware"
	"github.com/greenleaf/storefront-api/internal/service"
)

type AuthHandler struct {
	flows *service.AuthFlowService
}

func NewAuthHandler(flows *service.AuthFlowService) *AuthHandler {
	return &AuthHandler{flows: flows}
}

// StartFlow opens a fresh auth attempt on the login step.
func (h *AuthHandler) StartFlow(c *gin.Context) {
	c.JSON(http.StatusCreated, toFlowResponse(h.flows.StartFlow()))
}

func (h *AuthHandler) GetFlow(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	snap, err := h.flows.Snapshot(id)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) Login(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.Login(c.Request.Context(), id, req.Email, req.Password)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) GoToSignup(c *gin.Context) {
	h.navigate(c, h.flows.GoToSignup)
}

func (h *AuthHandler) GoToForgotPassword(c *gin.Context) {
	h.navigate(c, h.flows.GoToForgotPassword)
}

func (h *AuthHandler) Back(c *gin.Context) {
	h.navigate(c, h.flows.Back)
}

func (h *AuthHandler) navigate(c *gin.Context, op func(uuid.UUID) (service.FlowSnapshot, error)) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	snap, err := op(id)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) Register(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.Register(c.Request.Context(), id, req.Name, req.Email, req.Password)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) ConfirmSignupOtp(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.ConfirmSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.ConfirmSignupOtp(c.Request.Context(), id, req.Code)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.ForgotPassword(c.Request.Context(), id, req.Email)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) SubmitResetCode(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.ConfirmSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.SubmitResetCode(id, req.Code)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) ConfirmResetAndSetPassword(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	var req dto.ConfirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.flows.ConfirmResetAndSetPassword(c.Request.Context(), id, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

func (h *AuthHandler) Resend(c *gin.Context) {
	id, ok := flowID(c)
	if !ok {
		return
	}
	snap, err := h.flows.Resend(c.Request.Context(), id)
	if err != nil {
		flowError(c, snap, err)
		return
	}
	c.JSON(http.StatusOK, toFlowResponse(snap))
}

// Me restores the session view for the verified principal.
func (h *AuthHandler) Me(c *gin.Context) {
	session, err := h.flows.CurrentSession(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.UserResponse{
		ID:      session.User.ID,
		Email:   session.User.Email,
		Name:    session.User.Name,
		Role:    session.Role,
		Phone:   session.User.Phone,
		Address: session.User.Address,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.flows.SignOut(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func flowID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flow id"})
		return uuid.Nil, false
	}
	return id, true
}

// flowError maps flow sentinel errors to transport codes. Anything else is an
// internal failure already surfaced in the snapshot's generic message.
func flowError(c *gin.Context, snap service.FlowSnapshot, err error) {
	switch {
	case errors.Is(err, service.ErrFlowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "flow not found or expired"})
	case errors.Is(err, service.ErrInvalidFlowState):
		c.JSON(http.StatusConflict, gin.H{"error": "operation not valid in current step"})
	default:
		c.JSON(http.StatusInternalServerError, toFlowResponse(snap))
	}
}

func toFlowResponse(snap service.FlowSnapshot) dto.FlowResponse {
	resp := dto.FlowResponse{
		FlowID:  snap.ID,
		State:   string(snap.State),
		Error:   snap.Error,
		Success: snap.Success,
	}
	if snap.Session != nil {
		resp.Token = snap.Session.Token
		resp.User = &dto.UserResponse{
			ID:      snap.Session.User.ID,
			Email:   snap.Session.User.Email,
			Name:    snap.Session.User.Name,
			Role:    snap.Session.Role,
			Phone:   snap.Session.User.Phone,
			Address: snap.Session.User.Address,
		}
	}
	return resp
}
