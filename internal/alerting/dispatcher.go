package alerting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DispatcherOptions tune asynchronous delivery.
type DispatcherOptions struct {
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher delivers messages in the background with at-most-once semantics: a failed
// delivery is logged and never retried, and ordinary messages are dropped when the queue
// is full. Critical messages that do not fit in the queue get their own goroutine.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan Message
	done    chan struct{}
	pending sync.WaitGroup

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(notifier Notifier, opts DispatcherOptions, logger zerolog.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		notifier: notifier,
		timeout:  opts.SendTimeout,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		queue:    make(chan Message, opts.QueueSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Send enqueues msg and returns immediately.
func (d *Dispatcher) Send(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.Warn().Str("kind", string(msg.Kind)).Msg("dispatcher closed; message dropped")
		return
	}

	select {
	case d.queue <- msg:
		return
	default:
	}

	if msg.Kind == KindCritical {
		d.pending.Add(1)
		go func() {
			defer d.pending.Done()
			d.deliver(msg)
		}()
		return
	}

	d.dropped.Add(1)
	d.logger.Warn().Str("kind", string(msg.Kind)).Msg("notification queue full; message dropped")
}

// Close stops accepting messages and waits for queued ones to be attempted, or for ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	flushed := make(chan struct{})
	go func() {
		<-d.done
		d.pending.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped counts messages discarded without a delivery attempt.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Failed counts delivery attempts that returned an error.
func (d *Dispatcher) Failed() int64 {
	return d.failed.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, msg); err != nil {
		d.failed.Add(1)
		event := d.logger.Warn()
		if msg.Kind == KindCritical {
			event = d.logger.Error().Str("text", msg.Text)
		}
		event.Err(err).Str("kind", string(msg.Kind)).Msg("notification delivery failed")
	}
}

var _ Sender = (*Dispatcher)(nil)
