package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        uuid.UUID
	Email     string
	Password  string
	Name      string
	Role      Role
	Phone     string
	Address   string
	Confirmed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Brand       string
	Price       decimal.Decimal
	ListPrice   decimal.Decimal
	Category    string
	Description string
	Images      []string
	Rating      decimal.Decimal
	ReviewCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PrimaryImage is the image snapshotted into a cart line item at add time.
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type Review struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total is the sum of price*quantity over the snapshot prices carried by the
// line items. Recomputed on every call, never cached.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ItemCount is the sum of quantities across line items.
func (c *Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// CartItem holds at most one row per product per cart; the display fields are
// copied from the product at add time and are not refreshed afterwards.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	Brand     string
	Price     decimal.Decimal
	Image     string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CustomerName string
	Status       OrderStatus
	TotalPrice   decimal.Decimal
	ReturnReason string
	Items        []OrderItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem is an immutable snapshot of a cart line item at checkout.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Brand     string
	Price     decimal.Decimal
	Image     string
	Quantity  int
}

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketResolved TicketStatus = "resolved"
)

type SupportTicket struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	UserName  string
	Email     string
	Subject   string
	Message   string
	Status    TicketStatus
	CreatedAt time.Time
}

type OrderMessage struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
}
