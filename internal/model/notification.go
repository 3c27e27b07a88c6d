package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypeContact NotificationType = "contact"
)

// Notification records that a fan-out was attempted, not that anything was delivered.
type Notification struct {
	ID        int64
	Type      NotificationType
	Title     string
	Message   string
	Meta      map[string]any
	IsRead    bool
	CreatedAt time.Time
}

func EncodeMeta(meta map[string]any) (*string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func DecodeMeta(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decode notification meta: %w", err)
	}
	return meta, nil
}

type Contact struct {
	ID        int64
	Name      string
	Email     string
	Phone     string
	Message   string
	CreatedAt time.Time
}
