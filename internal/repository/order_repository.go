package repository

import (
	"context"
	"database/sql"
	"errors"

	"hygienix/backend/internal/model"
)

type CreateOrderInput struct {
	UserID        *int64
	CustomerName  string
	CustomerPhone string
	Address       string
	ServiceDate   string
	Items         []model.OrderItem
	Total         float64
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.OrderStatus) error
}

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrStatusChanged = errors.New("order status changed concurrently")
)

const insertOrderSQL = `
INSERT INTO orders (user_id, customer_name, customer_phone, address, service_date, items, total, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const listOrdersBaseSQL = `
SELECT id, user_id, customer_name, customer_phone, address, service_date, items, total, status, created_at
FROM orders
`

type SQLOrderRepository struct {
	db *sql.DB
}

func NewSQLOrderRepository(db *sql.DB) *SQLOrderRepository {
	return &SQLOrderRepository{db: db}
}

// CreateOrder inserts a pending order and returns its id.
func (r *SQLOrderRepository) CreateOrder(ctx context.Context, input CreateOrderInput) (int64, error) {
	items, err := model.EncodeItems(input.Items)
	if err != nil {
		return 0, err
	}
	var userID sql.NullInt64
	if input.UserID != nil {
		userID = sql.NullInt64{Int64: *input.UserID, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, insertOrderSQL,
		userID,
		input.CustomerName,
		input.CustomerPhone,
		input.Address,
		input.ServiceDate,
		items,
		input.Total,
		model.OrderStatusPending,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLOrderRepository) GetOrderByID(ctx context.Context, id int64) (model.Order, error) {
	row := r.db.QueryRowContext(ctx, listOrdersBaseSQL+" WHERE id = ? LIMIT 1", id)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, ErrOrderNotFound
	}
	return order, err
}

func (r *SQLOrderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.list(ctx, " WHERE user_id = ?", userID)
}

func (r *SQLOrderRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.list(ctx, "")
}

// UpdateStatus moves an order from one status to another. The prior status is
// part of the WHERE clause, so of two racing writers only one gets the row.
func (r *SQLOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to model.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	if _, err := r.GetOrderByID(ctx, id); err != nil {
		return err
	}
	return ErrStatusChanged
}

func (r *SQLOrderRepository) list(ctx context.Context, whereSQL string, args ...any) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx, listOrdersBaseSQL+whereSQL+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		order  model.Order
		userID sql.NullInt64
		items  string
	)
	if err := row.Scan(
		&order.ID,
		&userID,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.Address,
		&order.ServiceDate,
		&items,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	); err != nil {
		return model.Order{}, err
	}
	if userID.Valid {
		id := userID.Int64
		order.UserID = &id
	}
	decoded, err := model.DecodeItems(items)
	if err != nil {
		return model.Order{}, err
	}
	order.Items = decoded
	return order, nil
}
