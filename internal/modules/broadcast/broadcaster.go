// README: In-process publish/subscribe hub fanning status events out to live subscriptions.
package broadcast

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/metrics"
	"ordertrack/internal/modules/order"
	"ordertrack/internal/types"
)

// Scope selects what a subscription receives: one order, or every order when All is set.
type Scope struct {
	OrderID types.ID
	All     bool
}

const DefaultBufferSize = 16

// Wildcard receives every order's events. Only privileged sessions may use it.
var Wildcard = Scope{All: true}

func OrderScope(id types.ID) Scope {
	return Scope{OrderID: id}
}

func (s Scope) String() string {
	if s.All {
		return "*"
	}
	return string(s.OrderID)
}

// Delivery is one published event as seen by a subscriber.
type Delivery struct {
	OrderID types.ID
	Event   order.Event
}

// Subscription receives deliveries on C until it is unsubscribed or the broadcaster closes,
// at which point C is closed.
type Subscription struct {
	ID    string
	Scope Scope
	C     <-chan Delivery

	ch chan Delivery
}

type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[Scope]map[string]*Subscription
	bufSize int
	closed  bool
	log     *logrus.Entry
}

func New(bufSize int, log *logrus.Entry) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.New("broadcast")
	}
	return &Broadcaster{
		subs:    make(map[Scope]map[string]*Subscription),
		bufSize: bufSize,
		log:     log,
	}
}

// Subscribe registers a subscription for scope. After Close it returns a subscription whose
// channel is already closed.
func (b *Broadcaster) Subscribe(scope Scope) *Subscription {
	ch := make(chan Delivery, b.bufSize)
	sub := &Subscription{ID: uuid.NewString(), Scope: scope, C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	set, ok := b.subs[scope]
	if !ok {
		set = make(map[string]*Subscription)
		b.subs[scope] = set
	}
	set[sub.ID] = sub
	metrics.Subscribers.Inc()
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is harmless.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.Scope]
	if !ok {
		return
	}
	if _, ok := set[sub.ID]; !ok {
		return
	}
	delete(set, sub.ID)
	if len(set) == 0 {
		delete(b.subs, sub.Scope)
	}
	close(sub.ch)
	metrics.Subscribers.Dec()
}

// Publish hands e to every subscription scoped to orderID or to Wildcard. It never blocks:
// a subscription whose buffer is full misses this delivery.
func (b *Broadcaster) Publish(orderID types.ID, e order.Event) {
	d := Delivery{OrderID: orderID, Event: e}
	metrics.PublishesTotal.Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.deliver(b.subs[OrderScope(orderID)], d)
	b.deliver(b.subs[Wildcard], d)
}

func (b *Broadcaster) deliver(set map[string]*Subscription, d Delivery) {
	for _, sub := range set {
		select {
		case sub.ch <- d:
			metrics.DeliveriesTotal.Inc()
		default:
			metrics.DeliveriesDroppedTotal.Inc()
			b.log.WithFields(logrus.Fields{
				"subscription_id": sub.ID,
				"scope":           sub.Scope.String(),
				"order_id":        d.OrderID,
				"event_id":        d.Event.ID,
			}).Warn("delivery dropped: subscriber buffer full")
		}
	}
}

// Close ends every subscription. Later publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for scope, set := range b.subs {
		for _, sub := range set {
			close(sub.ch)
			metrics.Subscribers.Dec()
		}
		delete(b.subs, scope)
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.subs {
		n += len(set)
	}
	return n
}
