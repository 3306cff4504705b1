// Package notify aggregates connection events into operator
// notifications. A policy filter selects which event kinds notify; the
// accepted ones are composed into structured records (hostname + UTC
// timestamp) and handed to a Sender. Sends never block the pipeline:
// a full channel drops the event and counts it.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"arb-scanner/internal/metrics"
	"arb-scanner/pkg/types"
)

const eventBufferSize = 64

// Config selects which event kinds produce notifications.
type Config struct {
	NotifyOnConnect        bool `mapstructure:"on_connect"`
	NotifyOnDisconnect     bool `mapstructure:"on_disconnect"`
	NotifyOnReconnect      bool `mapstructure:"on_reconnect"`
	NotifyOnCircuitBreaker bool `mapstructure:"on_circuit_breaker"`
}

// DefaultConfig notifies on everything except connects, which are too
// noisy across many venues.
func DefaultConfig() Config {
	return Config{
		NotifyOnConnect:        false,
		NotifyOnDisconnect:     true,
		NotifyOnReconnect:      true,
		NotifyOnCircuitBreaker: true,
	}
}

// Record is one composed notification.
type Record struct {
	Hostname  string
	Timestamp time.Time // UTC
	Venue     types.Venue
	Kind      types.EventKind
	Message   string
}

// Sender delivers records somewhere external (Telegram, a log sink, a
// test capture). Delivery failures are the sender's problem; the
// notifier does not retry.
type Sender interface {
	Send(ctx context.Context, rec Record) error
}

// Notifier filters connection events and forwards accepted ones to the
// sender.
type Notifier struct {
	cfg      Config
	sender   Sender
	events   chan types.ConnectionEvent
	hostname string
	logger   *slog.Logger
}

// New creates a notifier. sender may be nil, in which case accepted
// records are only logged.
func New(cfg Config, sender Sender, logger *slog.Logger) *Notifier {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Notifier{
		cfg:      cfg,
		sender:   sender,
		events:   make(chan types.ConnectionEvent, eventBufferSize),
		hostname: hostname,
		logger:   logger.With("component", "notify"),
	}
}

// TrySend enqueues an event without blocking; on a full channel the
// event is dropped and counted.
func (n *Notifier) TrySend(ev types.ConnectionEvent) {
	select {
	case n.events <- ev:
	default:
		metrics.NotificationsDropped.Inc()
	}
}

// Run consumes events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-n.events:
			n.handle(ctx, ev)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, ev types.ConnectionEvent) {
	if !n.accepted(ev.Kind) {
		return
	}

	rec := Record{
		Hostname:  n.hostname,
		Timestamp: time.Now().UTC(),
		Venue:     ev.Venue,
		Kind:      ev.Kind,
		Message:   composeMessage(ev),
	}

	n.logger.Info("status notification", "venue", ev.Venue.String(), "kind", ev.Kind.String())
	if n.sender == nil {
		return
	}
	if err := n.sender.Send(ctx, rec); err != nil {
		n.logger.Warn("notification send failed", "error", err)
	}
}

// accepted applies the policy filter.
func (n *Notifier) accepted(kind types.EventKind) bool {
	switch kind {
	case types.EventConnected:
		return n.cfg.NotifyOnConnect
	case types.EventDisconnected:
		return n.cfg.NotifyOnDisconnect
	case types.EventReconnected:
		return n.cfg.NotifyOnReconnect
	case types.EventCircuitBreakerOpen:
		return n.cfg.NotifyOnCircuitBreaker
	default:
		return false
	}
}

func composeMessage(ev types.ConnectionEvent) string {
	switch ev.Kind {
	case types.EventConnected:
		return fmt.Sprintf("%s WebSocket connected", ev.Venue)
	case types.EventDisconnected:
		return fmt.Sprintf("%s WebSocket disconnected", ev.Venue)
	case types.EventReconnected:
		return fmt.Sprintf("%s WebSocket reconnected", ev.Venue)
	case types.EventCircuitBreakerOpen:
		return fmt.Sprintf("%s circuit breaker open, retry in %s", ev.Venue, ev.Cooldown)
	default:
		return fmt.Sprintf("%s %s", ev.Venue, ev.Kind)
	}
}
