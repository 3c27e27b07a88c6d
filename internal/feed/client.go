package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hygienix/backend/internal/model"
)

var ErrUnauthorized = errors.New("feed: unauthorized")

// APIError is a non-2xx answer from the orders API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("orders api: %d %s", e.Status, e.Message)
}

type orderPayload struct {
	ID            int64             `json:"id"`
	UserID        *int64            `json:"user_id"`
	CustomerName  string            `json:"customer_name"`
	CustomerPhone string            `json:"customer_phone"`
	Address       string            `json:"address"`
	ServiceDate   string            `json:"service_date"`
	Items         []model.OrderItem `json:"items"`
	Total         float64           `json:"total"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (p orderPayload) toModel() model.Order {
	items := p.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	return model.Order{
		ID:            p.ID,
		UserID:        p.UserID,
		CustomerName:  p.CustomerName,
		CustomerPhone: p.CustomerPhone,
		Address:       p.Address,
		ServiceDate:   p.ServiceDate,
		Items:         items,
		Total:         p.Total,
		Status:        model.OrderStatus(p.Status),
		CreatedAt:     p.CreatedAt,
	}
}

// Client talks to the orders API with an admin bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

func (c *Client) ListAll(ctx context.Context) ([]model.Order, error) {
	var payload []orderPayload
	if err := c.do(ctx, http.MethodGet, "/api/orders/admin", nil, &payload); err != nil {
		return nil, err
	}
	orders := make([]model.Order, 0, len(payload))
	for _, p := range payload {
		orders = append(orders, p.toModel())
	}
	return orders, nil
}

func (c *Client) SetStatus(ctx context.Context, orderID int64, status string) (model.Order, error) {
	body := map[string]string{"status": status}
	var payload orderPayload
	path := "/api/orders/" + strconv.FormatInt(orderID, 10) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, body, &payload); err != nil {
		return model.Order{}, err
	}
	return payload.toModel(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
