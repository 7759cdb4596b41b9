// README: Streaming session manager: one long-lived session per connected client.
package stream

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/metrics"
	"ordertrack/internal/modules/broadcast"
	"ordertrack/internal/modules/order"
)

const (
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultMaxMissedHeartbeats = 3
	DefaultRetryHint           = 3 * time.Second
)

var (
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrHeartbeatTimeout   = errors.New("too many failed heartbeats")
)

// Hub is the part of the broadcaster a session needs.
type Hub interface {
	Subscribe(scope broadcast.Scope) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

type Config struct {
	HeartbeatInterval   time.Duration
	MaxMissedHeartbeats int
	RetryHint           time.Duration
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.MaxMissedHeartbeats <= 0 {
		c.MaxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	if c.RetryHint <= 0 {
		c.RetryHint = DefaultRetryHint
	}
	return c
}

// ReplayFunc loads the recorded events of the session's order.
type ReplayFunc func(ctx context.Context) ([]order.Event, error)

// Options fix a session's scope for its whole life. Replay is only called when LastEventID is
// set on an order-scoped session, and only after the subscription exists so nothing published
// in between is lost.
type Options struct {
	Scope       broadcast.Scope
	LastEventID string
	Replay      ReplayFunc
}

type Manager struct {
	hub Hub
	cfg Config
	log *logrus.Entry
	now func() time.Time
}

func NewManager(hub Hub, cfg Config, log *logrus.Entry) *Manager {
	if log == nil {
		log = logger.New("stream")
	}
	return &Manager{hub: hub, cfg: cfg.withDefaults(), log: log, now: time.Now}
}

// Serve runs a session until ctx is done, the subscription closes, an update cannot be
// written, or too many heartbeats in a row fail. It always unsubscribes before returning.
// A nil error means the client went away.
func (m *Manager) Serve(ctx context.Context, w FrameWriter, opts Options) error {
	sub := m.hub.Subscribe(opts.Scope)
	kind := scopeKind(opts.Scope)
	metrics.StreamSessions.WithLabelValues(kind).Inc()
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		m.hub.Unsubscribe(sub)
		metrics.StreamSessions.WithLabelValues(kind).Dec()
	}()

	log := m.log.WithFields(logrus.Fields{"subscription_id": sub.ID, "scope": opts.Scope.String()})

	hello := ConnectionPayload{
		Type:      FrameConnection,
		Scope:     opts.Scope.String(),
		Timestamp: m.now().UTC(),
		RetryMs:   m.cfg.RetryHint.Milliseconds(),
	}
	if opts.Scope != broadcast.Wildcard {
		hello.OrderID = opts.Scope.OrderID
	}
	if err := w.WriteFrame(Frame{Event: FrameConnection, Retry: m.cfg.RetryHint, Data: hello}); err != nil {
		return err
	}

	replayed := make(map[string]struct{})
	for _, e := range m.replayAfter(ctx, opts, log) {
		if err := w.WriteFrame(updateFrame(e.OrderID, e)); err != nil {
			return err
		}
		replayed[e.ID] = struct{}{}
	}

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-sub.C:
			if !ok {
				return ErrSubscriptionClosed
			}
			if _, dup := replayed[d.Event.ID]; dup {
				delete(replayed, d.Event.ID)
				continue
			}
			if err := w.WriteFrame(updateFrame(d.OrderID, d.Event)); err != nil {
				return err
			}
		case <-ticker.C:
			err := w.WriteFrame(Frame{
				Event: FrameHeartbeat,
				Data:  HeartbeatPayload{Type: FrameHeartbeat, Timestamp: m.now().UTC()},
			})
			if err == nil {
				missed = 0
				continue
			}
			missed++
			log.WithFields(logrus.Fields{"missed": missed, "error": err.Error()}).Debug("heartbeat write failed")
			if missed >= m.cfg.MaxMissedHeartbeats {
				return ErrHeartbeatTimeout
			}
		}
	}
}

// replayAfter returns the events recorded after opts.LastEventID. An id the order never
// produced replays nothing.
func (m *Manager) replayAfter(ctx context.Context, opts Options, log *logrus.Entry) []order.Event {
	if opts.LastEventID == "" || opts.Scope == broadcast.Wildcard || opts.Replay == nil {
		return nil
	}
	events, err := opts.Replay(ctx)
	if err != nil {
		log.WithField("error", err.Error()).Warn("replay skipped")
		return nil
	}
	for i, e := range events {
		if e.ID == opts.LastEventID {
			return events[i+1:]
		}
	}
	return nil
}

func scopeKind(s broadcast.Scope) string {
	if s == broadcast.Wildcard {
		return "wildcard"
	}
	return "order"
}
