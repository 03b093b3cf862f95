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

type CartHandler struct {
	svc *service.CartService
}

func NewCartHandler(svc *service.CartService) *CartHandler {
	return &CartHandler{svc: svc}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.svc.GetCart(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	items := make([]dto.CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, dto.CartItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Brand:     item.Brand,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
		})
	}
	c.JSON(http.StatusOK, dto.CartResponse{
		ID:        cart.ID,
		Items:     items,
		Total:     cart.Total(),
		ItemCount: cart.ItemCount(),
	})
}

func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.Add(c.Request.Context(), middleware.GetUserID(c), middleware.GetUserRole(c), req.ProductID)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "item added"})
}

func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	var req dto.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err = h.svc.UpdateQuantity(c.Request.Context(), middleware.GetUserID(c), middleware.GetUserRole(c), productID, req.Delta)
	if err != nil {
		cartError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "quantity updated"})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	err = h.svc.Remove(c.Request.Context(), middleware.GetUserID(c), middleware.GetUserRole(c), productID)
	if err != nil {
		cartError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func cartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAdminCannotShop):
		c.JSON(http.StatusForbidden, gin.H{"error": "admin accounts cannot shop"})
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, service.ErrCartItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "cart item not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
