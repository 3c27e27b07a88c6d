package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"hygienix/backend/internal/auth"
	"hygienix/backend/internal/model"
	"hygienix/backend/internal/notify"
	"hygienix/backend/internal/repository"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Operator is where operator-facing messages go. Either field may be empty.
type Operator struct {
	Phone string
	Email string
}

type CreateOrderInput struct {
	Items         []model.OrderItem
	Total         *float64
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Address       string
	ServiceDate   string
}

// OrderService owns the order lifecycle: creation, status transitions and the
// notifications each of them fans out.
type OrderService struct {
	orders   repository.OrderRepository
	audit    repository.NotificationRepository
	notifier Notifier
	operator Operator
	currency string
	log      *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, audit repository.NotificationRepository, notifier Notifier, operator Operator, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		orders:   orders,
		audit:    audit,
		notifier: notifier,
		operator: operator,
		currency: "₹",
		log:      logger.With("component", "orders"),
	}
}

// CreateOrder stores a pending order and returns its id. The audit record and
// the notification fan-out happen after the insert commits; neither can fail
// the call.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput, actor *auth.Identity) (int64, error) {
	normalized, total, err := normalizeCreateOrderInput(input)
	if err != nil {
		return 0, err
	}

	var userID *int64
	if actor != nil && actor.ID > 0 {
		id := actor.ID
		userID = &id
	}

	orderID, err := s.orders.CreateOrder(ctx, repository.CreateOrderInput{
		UserID:        userID,
		CustomerName:  normalized.CustomerName,
		CustomerPhone: normalized.CustomerPhone,
		Address:       normalized.Address,
		ServiceDate:   normalized.ServiceDate,
		Items:         normalized.Items,
		Total:         total,
	})
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}

	// the order is committed; nothing below may fail the request
	detached := context.WithoutCancel(ctx)
	if _, err := s.audit.CreateNotification(detached, repository.CreateNotificationInput{
		Type:    model.NotificationTypeOrder,
		Title:   "New Booking",
		Message: fmt.Sprintf("Order #%d from %s", orderID, normalized.CustomerName),
		Meta:    map[string]any{"orderId": orderID},
	}); err != nil {
		s.log.Error("failed to record order notification", "order_id", orderID, "error", err)
	}

	s.notifier.Dispatch(s.creationMessages(orderID, normalized, total)...)
	return orderID, nil
}

func (s *OrderService) creationMessages(orderID int64, in CreateOrderInput, total float64) []notify.Message {
	amount := s.formatAmount(total)
	msgs := make([]notify.Message, 0, 2)

	if in.CustomerPhone != "" || in.CustomerEmail != "" {
		msgs = append(msgs, notify.Message{
			Event:   EventOrderCreated,
			Phone:   in.CustomerPhone,
			Email:   in.CustomerEmail,
			Subject: fmt.Sprintf("Booking #%d Confirmed", orderID),
			Body:    fmt.Sprintf("Hi %s, your booking #%d is confirmed! Total: %s.", in.CustomerName, orderID, amount),
		})
	}

	msgs = append(msgs, notify.Message{
		Event:   EventOrderCreated,
		Phone:   s.operator.Phone,
		Email:   s.operator.Email,
		Subject: fmt.Sprintf("New Booking #%d", orderID),
		Body:    fmt.Sprintf("New Order #%d from %s. Phone: %s. Total: %s.", orderID, in.CustomerName, in.CustomerPhone, amount),
		Topic:   EventOrderCreated,
		Data: map[string]any{
			"orderId":      orderID,
			"customerName": in.CustomerName,
			"total":        total,
		},
	})
	return msgs
}

// SetStatus moves a pending order into a terminal status. Only admins may do it.
func (s *OrderService) SetStatus(ctx context.Context, orderID int64, rawStatus string, actor auth.Identity) (model.Order, error) {
	if err := auth.RequireRole(actor, model.UserRoleAdmin); err != nil {
		return model.Order{}, err
	}

	next, err := model.ParseOrderStatus(rawStatus)
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return model.Order{}, err
	}
	if !order.Status.CanTransition(next) {
		return model.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusChanged):
			return model.Order{}, fmt.Errorf("%w: order %d was updated concurrently", ErrInvalidTransition, orderID)
		case errors.Is(err, repository.ErrOrderNotFound):
			return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		default:
			return model.Order{}, err
		}
	}
	order.Status = next

	s.log.Info("order status changed", "order_id", orderID, "status", next, "actor_id", actor.ID)
	if order.CustomerPhone != "" {
		s.notifier.Dispatch(notify.Message{
			Event: EventOrderStatusChanged,
			Phone: order.CustomerPhone,
			Body:  fmt.Sprintf("Hi %s, your booking #%d has been marked %s.", order.CustomerName, order.ID, next),
			Topic: EventOrderStatusChanged,
			Data:  map[string]any{"orderId": order.ID, "status": string(next)},
		})
	}
	return order, nil
}

// ListMine returns the orders owned by userID, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

// ListAll returns every order, newest first. Admin only.
func (s *OrderService) ListAll(ctx context.Context, actor auth.Identity) ([]model.Order, error) {
	if err := auth.RequireRole(actor, model.UserRoleAdmin); err != nil {
		return nil, err
	}
	return s.orders.ListOrders(ctx)
}

func (s *OrderService) formatAmount(total float64) string {
	return s.currency + strconv.FormatFloat(total, 'f', -1, 64)
}

func normalizeCreateOrderInput(input CreateOrderInput) (CreateOrderInput, float64, error) {
	out := CreateOrderInput{
		Items:         make([]model.OrderItem, 0, len(input.Items)),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		Address:       strings.TrimSpace(input.Address),
		ServiceDate:   strings.TrimSpace(input.ServiceDate),
	}
	if out.CustomerName == "" {
		out.CustomerName = "Guest"
	}
	if out.CustomerPhone == "" {
		return CreateOrderInput{}, 0, validationErr("customer_phone is required")
	}

	for idx, item := range input.Items {
		item.Name = strings.TrimSpace(item.Name)
		item.Category = strings.TrimSpace(item.Category)
		if item.Name == "" {
			return CreateOrderInput{}, 0, validationErr("items[%d].name is required", idx)
		}
		if item.Price < 0 {
			return CreateOrderInput{}, 0, validationErr("items[%d].price must be >= 0", idx)
		}
		out.Items = append(out.Items, item)
	}

	var total float64
	if input.Total != nil {
		total = *input.Total
	}
	if total < 0 {
		return CreateOrderInput{}, 0, validationErr("total must be >= 0")
	}
	return out, total, nil
}
