// Package notify fans human-readable messages out to external channels.
//
// Dispatch is fire-and-forget: a message is queued in process, each channel
// that accepts it gets exactly one attempt, and failures are logged here and
// never reported back to whoever queued the message.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrUpstreamDelivery = errors.New("upstream delivery failure")

// Message is one notification addressed to a single recipient. Channels pick
// the address they need: chat uses Phone, email uses Email. Topic, when set,
// also routes a copy onto the event bus.
type Message struct {
	ID      string
	Event   string
	Phone   string
	Email   string
	Subject string
	Body    string
	Topic   string
	Data    map[string]any
}

type Channel interface {
	Name() string
	Accepts(msg Message) bool
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type Dispatcher struct {
	cfg      Config
	channels []Channel
	log      *slog.Logger
	queue    chan Message

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, logger *slog.Logger, channels ...Channel) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:      cfg,
		channels: channels,
		log:      logger.With("component", "notify"),
		queue:    make(chan Message, cfg.QueueSize),
	}
}

func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.log.Info("dispatcher started", "workers", d.cfg.Workers, "channels", d.Channels())
}

// Dispatch queues messages without blocking. When the queue is full or the
// dispatcher is closed the message is dropped and logged.
func (d *Dispatcher) Dispatch(msgs ...Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if d.closed {
			d.log.Warn("notification dropped: dispatcher closed", "message_id", msg.ID, "event", msg.Event)
			continue
		}
		select {
		case d.queue <- msg:
		default:
			d.log.Warn("notification dropped: queue full", "message_id", msg.ID, "event", msg.Event)
		}
	}
}

// Close stops accepting messages and waits for queued ones to be attempted.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for msg := range d.queue {
			d.log.Warn("notification dropped: dispatcher never started", "message_id", msg.ID, "event", msg.Event)
		}
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	accepted := 0
	for _, ch := range d.channels {
		if !ch.Accepts(msg) {
			continue
		}
		accepted++
		if err := d.attempt(ch, msg); err != nil {
			d.log.Warn("notification failed",
				"channel", ch.Name(),
				"message_id", msg.ID,
				"event", msg.Event,
				"error", err,
			)
			continue
		}
		d.log.Info("notification delivered",
			"channel", ch.Name(),
			"message_id", msg.ID,
			"event", msg.Event,
		)
	}
	if accepted == 0 {
		d.log.Debug("notification had no matching channel", "message_id", msg.ID, "event", msg.Event)
	}
}

func (d *Dispatcher) attempt(ch Channel, msg Message) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrUpstreamDelivery, ch.Name(), r)
		}
	}()

	if sendErr := ch.Send(ctx, msg); sendErr != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamDelivery, ch.Name(), sendErr)
	}
	return nil
}
