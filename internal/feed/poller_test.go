package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hygienix/backend/internal/model"
)

type stubLister struct {
	mu     sync.Mutex
	orders []model.Order
	err    error
	calls  int
}

func (s *stubLister) ListAll(context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.Order(nil), s.orders...), nil
}

func (s *stubLister) set(orders ...model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
	s.err = nil
}

func (s *stubLister) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func order(id int64, status model.OrderStatus) model.Order {
	return model.Order{ID: id, CustomerName: "A", Status: status, Items: []model.OrderItem{}}
}

func TestPollReportsNewAndChangedOrders(t *testing.T) {
	lister := &stubLister{}
	lister.set(order(2, model.OrderStatusPending), order(1, model.OrderStatusPending))
	p := NewPoller(lister, time.Minute, quietLogger())
	ctx := context.Background()

	first, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Orders, 2)
	assert.Empty(t, first.New)
	assert.Empty(t, first.Changed)
	assert.Equal(t, 2, first.Counts[model.OrderStatusPending])
	assert.Equal(t, 0, first.Counts[model.OrderStatusCompleted])

	lister.set(order(4, model.OrderStatusPending), order(3, model.OrderStatusPending), order(2, model.OrderStatusPending), order(1, model.OrderStatusCancelled))
	second, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, second.New, 2)
	assert.Equal(t, int64(3), second.New[0].ID)
	assert.Equal(t, int64(4), second.New[1].ID)
	require.Len(t, second.Changed, 1)
	assert.Equal(t, int64(1), second.Changed[0].ID)
	assert.Equal(t, 3, second.Counts[model.OrderStatusPending])
	assert.Equal(t, 1, second.Counts[model.OrderStatusCancelled])

	third, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, third.New)
	assert.Empty(t, third.Changed)
}

func TestPollPropagatesListerError(t *testing.T) {
	lister := &stubLister{}
	lister.fail(errors.New("boom"))
	p := NewPoller(lister, 0, quietLogger())

	assert.Equal(t, DefaultInterval, p.interval)
	_, err := p.Poll(context.Background())
	require.Error(t, err)
}

func TestRunRefreshPollsImmediately(t *testing.T) {
	lister := &stubLister{}
	lister.set(order(1, model.OrderStatusPending))
	p := NewPoller(lister, time.Hour, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps := make(chan Snapshot, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(s Snapshot) { snaps <- s })
	}()

	select {
	case s := <-snaps:
		assert.Len(t, s.Orders, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	lister.set(order(1, model.OrderStatusCompleted))
	p.Refresh()

	select {
	case s := <-snaps:
		require.Len(t, s.Changed, 1)
		assert.Equal(t, model.OrderStatusCompleted, s.Changed[0].Status)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not trigger a poll")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestRunSurvivesFailedPolls(t *testing.T) {
	lister := &stubLister{}
	lister.fail(errors.New("api down"))
	p := NewPoller(lister, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps := make(chan Snapshot, 16)
	go func() { _ = p.Run(ctx, func(s Snapshot) { snaps <- s }) }()

	time.Sleep(30 * time.Millisecond)
	lister.set(order(9, model.OrderStatusPending))

	select {
	case s := <-snaps:
		assert.Len(t, s.Orders, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("poller stopped after a failure")
	}
}

func TestRefreshNeverBlocks(t *testing.T) {
	p := NewPoller(&stubLister{}, time.Minute, quietLogger())
	for i := 0; i < 10; i++ {
		p.Refresh()
	}
}
