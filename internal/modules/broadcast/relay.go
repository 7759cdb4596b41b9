// README: Redis pub/sub relay so every instance's streams see status events published anywhere.
package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/metrics"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

const (
	DefaultRelayChannel = "ordertrack:status-events"

	relayOutboxSize     = 256
	relayPublishTimeout = 3 * time.Second
)

type envelope struct {
	Origin  string      `json:"origin"`
	OrderID types.ID    `json:"orderId"`
	Event   order.Event `json:"event"`
}

// Relay publishes to the local broadcaster and mirrors each event to a Redis channel. Run
// feeds events published by other instances back into the local broadcaster.
type Relay struct {
	local   *Broadcaster
	rdb     *redis.Client
	channel string
	origin  string
	outbox  chan envelope
	log     *logrus.Entry
}

func NewRelay(local *Broadcaster, rdb *redis.Client, channel string, log *logrus.Entry) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if log == nil {
		log = logger.New("relay")
	}
	return &Relay{
		local:   local,
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		outbox:  make(chan envelope, relayOutboxSize),
		log:     log,
	}
}

// Publish delivers locally right away and queues the event for Redis without blocking.
func (r *Relay) Publish(orderID types.ID, e order.Event) {
	r.local.Publish(orderID, e)
	select {
	case r.outbox <- envelope{Origin: r.origin, OrderID: orderID, Event: e}:
	default:
		metrics.RelayMessagesTotal.WithLabelValues("out", "dropped").Inc()
		r.log.WithFields(logrus.Fields{"order_id": orderID, "event_id": e.ID}).Warn("relay outbox full; event not mirrored")
	}
}

// Run subscribes to the relay channel and pumps the outbox until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.log.WithField("channel", r.channel).Info("relay subscribed")

	in := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			r.receive(msg.Payload)
		case env := <-r.outbox:
			r.send(ctx, env)
		}
	}
}

func (r *Relay) send(ctx context.Context, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("out", "error").Inc()
		r.log.WithField("error", err.Error()).Error("relay encode failed")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, relayPublishTimeout)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("out", "error").Inc()
		r.log.WithFields(logrus.Fields{
			"order_id": env.OrderID,
			"event_id": env.Event.ID,
			"error":    err.Error(),
		}).Warn("relay publish failed")
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("out", "ok").Inc()
}

func (r *Relay) receive(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		metrics.RelayMessagesTotal.WithLabelValues("in", "error").Inc()
		r.log.WithField("error", err.Error()).Warn("relay message ignored: bad payload")
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.OrderID == "" {
		metrics.RelayMessagesTotal.WithLabelValues("in", "error").Inc()
		return
	}
	metrics.RelayMessagesTotal.WithLabelValues("in", "ok").Inc()
	r.local.Publish(env.OrderID, env.Event)
}
