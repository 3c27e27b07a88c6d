package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled}

func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range orderStatuses {
		if s == status {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", raw)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether an order in status s may move to next.
// Only pending orders move, and only into a terminal status.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

type OrderItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID            int64
	UserID        *int64
	CustomerName  string
	CustomerPhone string
	Address       string
	ServiceDate   string
	Items         []OrderItem
	Total         float64
	Status        OrderStatus
	CreatedAt     time.Time
}

func EncodeItems(items []OrderItem) (string, error) {
	if items == nil {
		items = []OrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeItems always returns a non-nil slice; an empty column decodes to no items.
func DecodeItems(raw string) ([]OrderItem, error) {
	items := make([]OrderItem, 0)
	if strings.TrimSpace(raw) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if items == nil {
		items = make([]OrderItem, 0)
	}
	return items, nil
}
