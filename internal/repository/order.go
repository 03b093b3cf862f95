package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenleaf/storefront-api/internal/model"
)

// ErrStatusConflict is returned by UpdateStatus when the order's status no
// longer matches the expected one. Orders are append-only otherwise.
var ErrStatusConflict = errors.New("order status changed concurrently")

type OrderRepository interface {
	// CreateWithItems appends the order to the ledger and clears the source
	// cart in the same transaction, so checkout observes the cart exactly as
	// snapshotted.
	CreateWithItems(ctx context.Context, order *model.Order, cartID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	// UpdateStatus moves the order from the expected status to the new one,
	// failing with ErrStatusConflict if the row is not in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, reason string) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) CreateWithItems(ctx context.Context, order *model.Order, cartID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (id, user_id, customer_name, status, total_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.CustomerName, order.Status, order.TotalPrice,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
		it := &order.Items[i]
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, brand, price, image, quantity, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
			it.ID, it.OrderID, it.ProductID, it.Name, it.Brand, it.Price, it.Image, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if _, err = tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order := &model.Order{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, customer_name, status, total_price, COALESCE(return_reason, ''), created_at, updated_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&order.ID, &order.UserID, &order.CustomerName, &order.Status, &order.TotalPrice,
		&order.ReturnReason, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, name, brand, price, image, quantity FROM order_items WHERE order_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Brand, &item.Price, &item.Image, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID)
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, ``)
}

func (r *pgOrderRepo) list(ctx context.Context, where string, args ...any) ([]model.Order, error) {
	query := `SELECT id, user_id, customer_name, status, total_price, COALESCE(return_reason, ''), created_at, updated_at
			  FROM orders ` + where + ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.CustomerName, &o.Status, &o.TotalPrice,
			&o.ReturnReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, reason string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET status = $3, return_reason = CASE WHEN $4 <> '' THEN $4 ELSE return_reason END, updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id, from, to, reason,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
