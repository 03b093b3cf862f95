package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/repository"
)

var (
	ErrAdminCannotShop  = errors.New("admin accounts cannot hold a cart")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartService owns the session-scoped cart aggregate: one line item per
// product, quantity always >= 1, totals derived on demand from the prices
// snapshotted at add time.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return s.cartRepo.GetCartWithItems(ctx, cart.ID)
}

// Add puts one unit of the product in the cart, incrementing the existing line
// item if the product is already there. The product's display fields and
// primary image are snapshotted on first add. Admin sessions are refused
// before any mutation happens.
func (s *CartService) Add(ctx context.Context, userID uuid.UUID, role model.Role, productID uuid.UUID) error {
	if role == model.RoleAdmin {
		return ErrAdminCannotShop
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return ErrProductNotFound
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("get or create cart: %w", err)
	}

	return s.cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Name:      product.Name,
		Brand:     product.Brand,
		Price:     product.Price,
		Image:     product.PrimaryImage(),
		Quantity:  1,
	})
}

// Remove deletes the line item if present; removing an absent product is a
// no-op.
func (s *CartService) Remove(ctx context.Context, userID uuid.UUID, role model.Role, productID uuid.UUID) error {
	if role == model.RoleAdmin {
		return ErrAdminCannotShop
	}
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	return s.cartRepo.DeleteItem(ctx, cart.ID, productID)
}

// UpdateQuantity applies a signed delta to the line item's quantity. A result
// of zero or less removes the line item entirely; the cart never stores a
// non-positive quantity.
func (s *CartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, role model.Role, productID uuid.UUID, delta int) error {
	if role == model.RoleAdmin {
		return ErrAdminCannotShop
	}
	cart, err := s.cartRepo.GetOrCreateCart(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}

	item, err := s.cartRepo.GetItem(ctx, cart.ID, productID)
	if err != nil {
		return fmt.Errorf("get cart item: %w", err)
	}
	if item == nil {
		return ErrCartItemNotFound
	}

	next := item.Quantity + delta
	if next <= 0 {
		return s.cartRepo.DeleteItem(ctx, cart.ID, productID)
	}
	return s.cartRepo.SetQuantity(ctx, cart.ID, productID, next)
}
