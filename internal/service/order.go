package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/repository"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoSession          = errors.New("no authenticated session")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAccessDenied  = errors.New("access denied")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrReturnReasonNeeded = errors.New("a return reason is required")
)

// OrderSink publishes order-created events for asynchronous processing.
type OrderSink interface {
	PublishOrderCreated(ctx context.Context, msg model.OrderMessage) error
}

// AMQPOrderSink publishes to the orders queue.
type AMQPOrderSink struct{ Channel *amqp.Channel }

func (s AMQPOrderSink) PublishOrderCreated(ctx context.Context, msg model.OrderMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	return s.Channel.PublishWithContext(ctx, "", "orders", false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// OrderService owns the append-only order ledger and its status machine.
type OrderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	sink      OrderSink
}

func NewOrderService(orderRepo repository.OrderRepository, cartRepo repository.CartRepository, sink OrderSink) *OrderService {
	return &OrderService{orderRepo: orderRepo, cartRepo: cartRepo, sink: sink}
}

// Checkout converts the session's cart into a Pending order: snapshots the
// line items and total exactly as they are at this moment, appends the order
// to the ledger and clears the cart in the same transaction. Requires an
// authenticated non-admin session and a non-empty cart.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, role model.Role, customerName string) (*model.Order, error) {
	if userID == uuid.Nil {
		return nil, ErrNoSession
	}
	if role == model.RoleAdmin {
		return nil, ErrAdminCannotShop
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	cartWithItems, err := s.cartRepo.GetCartWithItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if cartWithItems == nil || len(cartWithItems.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]model.OrderItem, 0, len(cartWithItems.Items))
	for _, ci := range cartWithItems.Items {
		items = append(items, model.OrderItem{
			ProductID: ci.ProductID,
			Name:      ci.Name,
			Brand:     ci.Brand,
			Price:     ci.Price,
			Image:     ci.Image,
			Quantity:  ci.Quantity,
		})
	}

	order := &model.Order{
		ID:           uuid.New(),
		UserID:       userID,
		CustomerName: customerName,
		Status:       model.OrderStatusPending,
		TotalPrice:   cartWithItems.Total(),
		Items:        items,
	}
	if err := s.orderRepo.CreateWithItems(ctx, order, cart.ID); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if s.sink != nil {
		_ = s.sink.PublishOrderCreated(ctx, model.OrderMessage{OrderID: order.ID, UserID: userID})
	}
	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID, role model.Role) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if role != model.RoleAdmin && order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.orderRepo.ListAll(ctx)
}

// UpdateStatus performs an admin status move. Only moves in the transition
// table are accepted; in particular there is no arbitrary overwrite and no
// going backwards.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, to model.OrderStatus) (*model.Order, error) {
	if !model.ValidStatus(to) {
		return nil, ErrInvalidTransition
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !model.AdminTransition(order.Status, to) {
		return nil, ErrInvalidTransition
	}
	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, to, ""); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	order.Status = to
	return order, nil
}

// RequestReturn is the customer side branch: Delivered -> ReturnRequested,
// with a mandatory non-empty reason.
func (s *OrderService) RequestReturn(ctx context.Context, orderID, userID uuid.UUID, reason string) (*model.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReturnReasonNeeded
	}
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	if !model.CanTransition(order.Status, model.OrderStatusReturnRequested) {
		return nil, ErrInvalidTransition
	}
	if err := s.orderRepo.UpdateStatus(ctx, orderID, order.Status, model.OrderStatusReturnRequested, reason); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("request return: %w", err)
	}
	order.Status = model.OrderStatusReturnRequested
	order.ReturnReason = reason
	return order, nil
}
