// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/warden/pkg/errutil"
)

// Delivery statuses reported to the DeliveryObserver.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// DeliveryObserver is told how each queued message ended.
type DeliveryObserver interface {
	MailDelivered(kind, status string)
}

type nopDeliveryObserver struct{}

func (nopDeliveryObserver) MailDelivered(string, string) {}

// DispatcherConfig tunes a Dispatcher. Zero values take the defaults.
type DispatcherConfig struct {
	QueueSize      int           `koanf:"queue_size"`
	Workers        int           `koanf:"workers"`
	MaxRetries     uint64        `koanf:"max_retries"`
	RetryBackoff   time.Duration `koanf:"retry_backoff"`
	AttemptTimeout time.Duration `koanf:"attempt_timeout"`
}

// DefaultDispatcherConfig returns the serve defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:      100,
		Workers:        2,
		MaxRetries:     2,
		RetryBackoff:   time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// Dispatcher delivers messages on background workers. A message gets
// MaxRetries+1 attempts with exponential backoff. MAIL_NOT_CONFIGURED is not
// retried. When the queue is full the message is dropped.
type Dispatcher struct {
	sender   Sender
	cfg      DispatcherConfig
	observer DeliveryObserver
	logger   *slog.Logger

	mu      sync.RWMutex
	queue   chan *Message
	started bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. observer and logger may be nil.
func NewDispatcher(sender Sender, cfg DispatcherConfig, observer DeliveryObserver, logger *slog.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	defaults := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaults.AttemptTimeout
	}
	if observer == nil {
		observer = nopDeliveryObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:   sender,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		queue:    make(chan *Message, cfg.QueueSize),
	}, nil
}

// Start launches the workers. Deliveries run under ctx, not the context of
// the request that enqueued them.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return oops.Errorf("mail dispatcher already started")
	}
	if d.closed {
		return oops.Errorf("mail dispatcher is stopped")
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info("mail dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
	)
	return nil
}

// Enqueue queues msg without blocking. It reports false if the message was
// dropped because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(msg *Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(msg, "dispatcher stopped")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.drop(msg, "queue full")
		return false
	}
}

// Stop stops accepting messages and waits for queued ones to be delivered.
// If ctx ends first, in-flight deliveries are canceled and ctx's error is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("mail dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return oops.With("operation", "stop mail dispatcher").Wrap(ctx.Err())
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) {
	attempts := 0
	backoff := retry.WithMaxRetries(d.cfg.MaxRetries, retry.NewExponential(d.cfg.RetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()

		err := d.sender.Send(attemptCtx, msg)
		if err == nil {
			return nil
		}
		if code, _ := codeOf(err); code == CodeNotConfigured {
			return err
		}
		return retry.RetryableError(err)
	})

	if err != nil {
		d.observer.MailDelivered(msg.Kind, StatusFailed)
		errutil.Log(ctx, d.logger, slog.LevelWarn, "email delivery failed", err,
			"kind", msg.Kind,
			"to", msg.To,
			"attempts", attempts,
		)
		return
	}
	d.observer.MailDelivered(msg.Kind, StatusSent)
	d.logger.DebugContext(ctx, "email delivered", "kind", msg.Kind, "to", msg.To, "attempts", attempts)
}

func (d *Dispatcher) drop(msg *Message, reason string) {
	d.observer.MailDelivered(msg.Kind, StatusDropped)
	d.logger.Warn("email dropped", "kind", msg.Kind, "to", msg.To, "reason", reason)
}

func codeOf(err error) (string, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "", false
	}
	code, ok := any(oopsErr.Code()).(string)
	return code, ok
}
