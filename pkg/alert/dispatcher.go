package alert

import (
	"chatrelay/pkg/logger"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a single delivery when the dispatcher is created
// without one.
const DefaultTimeout = 5 * time.Second

// Dispatcher delivers alerts through a Notifier from a single background
// worker. Alerts are queued without blocking the caller; when the queue is
// full new alerts are dropped. A nil *Dispatcher drops everything.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Alert
	done   chan struct{}
}

// NewDispatcher starts a dispatcher keeping up to queueSize pending alerts.
func NewDispatcher(notifier Notifier, queueSize int, timeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		queue:    make(chan Alert, queueSize),
		done:     make(chan struct{}),
	}
	go d.run()

	return d
}

// Send queues a for delivery. It reports false when the alert was dropped.
func (d *Dispatcher) Send(a Alert) bool {
	if d == nil {
		return false
	}
	if a.Time.IsZero() {
		a.Time = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- a:
		return true
	default:
		logger.Warn(context.Background(), "alert queue full, alert dropped", zap.String("alert", a.Message))

		return false
	}
}

// Close stops accepting alerts and waits for the queued ones to be delivered
// or for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("could not drain alert queue: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for a := range d.queue {
		d.deliver(a)
	}
}

func (d *Dispatcher) deliver(a Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	fields := []zap.Field{zap.String("alert", a.Message), zap.String("level", string(a.Level))}
	if err := d.notifier.Notify(ctx, a); err != nil {
		logger.Error(ctx, "could not deliver alert", append(fields, zap.Error(err))...)

		return
	}
	logger.Debug(ctx, "alert delivered", fields...)
}
