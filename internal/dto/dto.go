package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenleaf/storefront-api/internal/model"
)

// --- Auth flow ---
//
// Flow payloads carry no binding:"required" tags on purpose: missing-field
// validation is part of the auth flow contract and has to surface as a flow
// error message, not as a transport-level 400.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ConfirmSignupRequest struct {
	Code string `json:"code"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ConfirmResetRequest struct {
	Code            string `json:"code"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type FlowResponse struct {
	FlowID  uuid.UUID     `json:"flow_id"`
	State   string        `json:"state"`
	Error   string        `json:"error,omitempty"`
	Success string        `json:"success,omitempty"`
	Token   string        `json:"token,omitempty"`
	User    *UserResponse `json:"user,omitempty"`
}

type UserResponse struct {
	ID      uuid.UUID  `json:"id"`
	Email   string     `json:"email"`
	Name    string     `json:"name"`
	Role    model.Role `json:"role"`
	Phone   string     `json:"phone,omitempty"`
	Address string     `json:"address,omitempty"`
}

// --- Product ---

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Brand       string          `json:"brand" binding:"required"`
	Price       decimal.Decimal `json:"price" binding:"required"`
	ListPrice   decimal.Decimal `json:"list_price"`
	Category    string          `json:"category" binding:"required"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Brand       *string          `json:"brand"`
	Price       *decimal.Decimal `json:"price"`
	ListPrice   *decimal.Decimal `json:"list_price"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
	Images      *[]string        `json:"images"`
}

type ListProductsRequest struct {
	Category string `form:"category"`
	Query    string `form:"q"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Price       decimal.Decimal `json:"price"`
	ListPrice   decimal.Decimal `json:"list_price"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	Rating      decimal.Decimal `json:"rating"`
	ReviewCount int             `json:"review_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
}

type AddReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type AddCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

type UpdateQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type CartResponse struct {
	ID        uuid.UUID          `json:"id"`
	Items     []CartItemResponse `json:"items"`
	Total     decimal.Decimal    `json:"total"`
	ItemCount int                `json:"item_count"`
}

type CartItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// --- Order ---

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

type RequestReturnRequest struct {
	Reason string `json:"reason"`
}

type OrderResponse struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"user_id"`
	CustomerName string              `json:"customer_name"`
	Status       model.OrderStatus   `json:"status"`
	TotalPrice   decimal.Decimal     `json:"total_price"`
	ReturnReason string              `json:"return_reason,omitempty"`
	Items        []OrderItemResponse `json:"items"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Support tickets ---

type CreateTicketRequest struct {
	Subject string `json:"subject" binding:"required"`
	Message string `json:"message" binding:"required"`
}

type TicketResponse struct {
	ID        uuid.UUID          `json:"id"`
	UserName  string             `json:"user_name"`
	Email     string             `json:"email"`
	Subject   string             `json:"subject"`
	Message   string             `json:"message"`
	Status    model.TicketStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// --- Assistant ---

type ChatTurn struct {
	Role string `json:"role" binding:"required,oneof=user assistant"`
	Text string `json:"text" binding:"required"`
}

type ChatRequest struct {
	Message string     `json:"message" binding:"required"`
	History []ChatTurn `json:"history"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
