package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenleaf/storefront-api/internal/model"
)

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "users")

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := &model.User{
		Email: "test@example.com", Password: "hashed",
		Name: "Asha Sharma", Role: model.RoleCustomer,
	}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.Confirmed)

	found, err := repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	require.NoError(t, repo.MarkConfirmed(ctx, user.ID))
	found, err = repo.GetByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.True(t, found.Confirmed)
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "reviews", "products")

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := &model.Product{
		Name: "Ashwagandha Root", Brand: "Green Leaf", Description: "Desc",
		Price: decimal.NewFromFloat(29.99), Category: "Powders",
		Images: []string{"a.jpg", "b.jpg"},
	}
	require.NoError(t, repo.Create(ctx, product))
	assert.NotEqual(t, uuid.Nil, product.ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ashwagandha Root", found.Name)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, found.Images)

	product.Name = "Updated"
	require.NoError(t, repo.Update(ctx, product))

	found, _ = repo.GetByID(ctx, product.ID)
	assert.Equal(t, "Updated", found.Name)

	require.NoError(t, repo.Delete(ctx, product.ID))
	found, _ = repo.GetByID(ctx, product.ID)
	assert.Nil(t, found)
}

func TestProductRepo_ListFilters(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "reviews", "products")

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	for _, p := range []*model.Product{
		{Name: "Tulsi Tea", Brand: "Green Leaf", Category: "Teas", Price: decimal.NewFromInt(7)},
		{Name: "Neem Oil", Brand: "Green Leaf", Category: "Oils", Price: decimal.NewFromInt(12)},
		{Name: "Chamomile Tea", Brand: "Herbalis", Category: "Teas", Price: decimal.NewFromInt(6)},
	} {
		require.NoError(t, repo.Create(ctx, p))
	}

	teas, err := repo.List(ctx, "Teas", "")
	require.NoError(t, err)
	assert.Len(t, teas, 2)

	matched, err := repo.List(ctx, "", "neem")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Neem Oil", matched[0].Name)

	both, err := repo.List(ctx, "Teas", "chamomile")
	require.NoError(t, err)
	assert.Len(t, both, 1)

	none, err := repo.List(ctx, "Teas", "neem")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductRepo_ReviewUpdatesAggregate(t *testing.T) {
	cleanupTable(t, "reviews", "products", "users")

	repo := NewProductRepository(testPool)
	ctx := context.Background()

	product := &model.Product{Name: "Brahmi Powder", Price: decimal.NewFromInt(10)}
	require.NoError(t, repo.Create(ctx, product))

	require.NoError(t, repo.AddReview(ctx, &model.Review{
		ProductID: product.ID, UserID: uuid.New(), UserName: "Asha", Rating: 5, Comment: "great",
	}))
	require.NoError(t, repo.AddReview(ctx, &model.Review{
		ProductID: product.ID, UserID: uuid.New(), UserName: "Ravi", Rating: 3, Comment: "ok",
	}))

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.ReviewCount)
	assert.True(t, found.Rating.Equal(decimal.NewFromInt(4)), "rating = %s", found.Rating)

	reviews, err := repo.ListReviews(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestCartRepo_UpsertMergesByProduct(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "products", "users")

	userRepo := NewUserRepository(testPool)
	cartRepo := NewCartRepository(testPool)
	ctx := context.Background()

	user := &model.User{Email: "cart@example.com", Password: "h", Name: "C", Role: model.RoleCustomer}
	require.NoError(t, userRepo.Create(ctx, user))

	cart, err := cartRepo.GetOrCreateCart(ctx, user.ID)
	require.NoError(t, err)

	productID := uuid.New()
	line := model.CartItem{
		CartID: cart.ID, ProductID: productID,
		Name: "Tulsi Tea", Brand: "Green Leaf", Price: decimal.NewFromInt(7), Quantity: 1,
	}
	item := line
	require.NoError(t, cartRepo.UpsertItem(ctx, &item))
	item = line
	require.NoError(t, cartRepo.UpsertItem(ctx, &item))

	cartWithItems, err := cartRepo.GetCartWithItems(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, cartWithItems.Items, 1)
	assert.Equal(t, 2, cartWithItems.Items[0].Quantity)

	require.NoError(t, cartRepo.SetQuantity(ctx, cart.ID, productID, 5))
	got, err := cartRepo.GetItem(ctx, cart.ID, productID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	require.NoError(t, cartRepo.DeleteItem(ctx, cart.ID, productID))
	got, err = cartRepo.GetItem(ctx, cart.ID, productID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOrderRepo_CheckoutClearsCart(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "users")

	userRepo := NewUserRepository(testPool)
	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	ctx := context.Background()

	user := &model.User{Email: "order@example.com", Password: "h", Name: "O", Role: model.RoleCustomer}
	require.NoError(t, userRepo.Create(ctx, user))

	cart, err := cartRepo.GetOrCreateCart(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, cartRepo.UpsertItem(ctx, &model.CartItem{
		CartID: cart.ID, ProductID: uuid.New(), Name: "P", Price: decimal.NewFromInt(25), Quantity: 2,
	}))

	order := &model.Order{
		ID: uuid.New(), UserID: user.ID, CustomerName: "O",
		Status: model.OrderStatusPending, TotalPrice: decimal.NewFromInt(50),
		Items: []model.OrderItem{
			{ProductID: uuid.New(), Name: "P", Price: decimal.NewFromInt(25), Quantity: 2},
		},
	}
	require.NoError(t, orderRepo.CreateWithItems(ctx, order, cart.ID))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPending, found.Status)
	require.Len(t, found.Items, 1)

	cartWithItems, err := cartRepo.GetCartWithItems(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, cartWithItems.Items)
}

func TestOrderRepo_UpdateStatusCompareAndSet(t *testing.T) {
	cleanupTable(t, "order_items", "orders", "cart_items", "carts", "users")

	userRepo := NewUserRepository(testPool)
	cartRepo := NewCartRepository(testPool)
	orderRepo := NewOrderRepository(testPool)
	ctx := context.Background()

	user := &model.User{Email: "status@example.com", Password: "h", Name: "S", Role: model.RoleCustomer}
	require.NoError(t, userRepo.Create(ctx, user))
	cart, err := cartRepo.GetOrCreateCart(ctx, user.ID)
	require.NoError(t, err)

	order := &model.Order{
		ID: uuid.New(), UserID: user.ID, CustomerName: "S",
		Status: model.OrderStatusPending, TotalPrice: decimal.NewFromInt(10),
	}
	require.NoError(t, orderRepo.CreateWithItems(ctx, order, cart.ID))

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusProcessing, ""))

	// Stale expectation loses.
	err = orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusShipped, "")
	assert.ErrorIs(t, err, ErrStatusConflict)

	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, model.OrderStatusShipped, ""))
	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusShipped, model.OrderStatusDelivered, ""))
	require.NoError(t, orderRepo.UpdateStatus(ctx, order.ID, model.OrderStatusDelivered, model.OrderStatusReturnRequested, "arrived damaged"))

	found, err := orderRepo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusReturnRequested, found.Status)
	assert.Equal(t, "arrived damaged", found.ReturnReason)
}

func TestTicketRepo_Lifecycle(t *testing.T) {
	cleanupTable(t, "tickets")

	repo := NewTicketRepository(testPool)
	ctx := context.Background()

	ticket := &model.SupportTicket{
		UserID: uuid.New(), UserName: "Asha", Email: "asha@example.com",
		Subject: "Late delivery", Message: "Order has not arrived",
	}
	require.NoError(t, repo.Create(ctx, ticket))
	assert.Equal(t, model.TicketOpen, ticket.Status)

	open, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, repo.Resolve(ctx, ticket.ID))
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.TicketResolved, all[0].Status)
}
