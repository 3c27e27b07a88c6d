// Package feed is the operator's read path over orders: it re-lists every
// order on a fixed interval and reports what changed since the last poll.
// The server is authoritative; a snapshot never merges local edits.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"hygienix/backend/internal/model"
)

const DefaultInterval = 10 * time.Second

// Lister returns every order, newest first.
type Lister interface {
	ListAll(ctx context.Context) ([]model.Order, error)
}

type Snapshot struct {
	Orders    []model.Order
	Counts    map[model.OrderStatus]int
	New       []model.Order
	Changed   []model.Order
	FetchedAt time.Time
}

type Poller struct {
	lister   Lister
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
	refresh  chan struct{}

	mu     sync.Mutex
	seen   map[int64]model.OrderStatus
	primed bool
}

func NewPoller(lister Lister, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		log:      logger.With("component", "feed"),
		now:      time.Now,
		refresh:  make(chan struct{}, 1),
		seen:     make(map[int64]model.OrderStatus),
	}
}

// Poll lists the orders once. The first poll reports nothing as new.
func (p *Poller) Poll(ctx context.Context) (Snapshot, error) {
	orders, err := p.lister.ListAll(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Orders:    orders,
		Counts:    make(map[model.OrderStatus]int, len(model.OrderStatuses())),
		FetchedAt: p.now(),
	}
	for _, status := range model.OrderStatuses() {
		snap.Counts[status] = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[int64]model.OrderStatus, len(orders))
	for _, order := range orders {
		snap.Counts[order.Status]++
		current[order.ID] = order.Status

		prev, known := p.seen[order.ID]
		switch {
		case !known && p.primed:
			snap.New = append(snap.New, order)
		case known && prev != order.Status:
			snap.Changed = append(snap.Changed, order)
		}
	}
	p.seen = current
	p.primed = true

	sort.Slice(snap.New, func(i, j int) bool { return snap.New[i].ID < snap.New[j].ID })
	return snap, nil
}

// Refresh asks a running loop to poll now instead of waiting for the next
// tick. It never blocks; pending requests collapse into one.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls immediately, then on every tick or Refresh, until ctx is done.
// Failed polls are logged and the loop keeps going.
func (p *Poller) Run(ctx context.Context, onSnapshot func(Snapshot)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollOnce(ctx, onSnapshot)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-p.refresh:
			ticker.Reset(p.interval)
		}
		p.pollOnce(ctx, onSnapshot)
	}
}

func (p *Poller) pollOnce(ctx context.Context, onSnapshot func(Snapshot)) {
	snap, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("feed poll failed", "error", err)
		}
		return
	}
	onSnapshot(snap)
}
