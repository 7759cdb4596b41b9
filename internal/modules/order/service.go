// README: Tracking service validates status transitions, persists them and publishes the change.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ordertrack/internal/logger"
	"ordertrack/internal/metrics"
	"ordertrack/internal/types"
)

// OrderStore is the durable home of order snapshots.
type OrderStore interface {
	Create(ctx context.Context, o *Snapshot) error
	Get(ctx context.Context, id types.ID) (*Snapshot, error)
	Update(ctx context.Context, id types.ID, p Patch) error
	FindByContact(ctx context.Context, q ContactQuery) ([]Snapshot, error)
	List(ctx context.Context, f Filter) ([]Snapshot, int, error)
	StatusCounts(ctx context.Context) (map[Status]int, error)
}

// EventLog durably records status events.
type EventLog interface {
	Append(ctx context.Context, e *Event) error
}

// Publisher fans a recorded event out to live observers. Implementations must not block.
type Publisher interface {
	Publish(orderID types.ID, e Event)
}

// Notifier sends an out-of-band message to the customer about a status change.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type Notification struct {
	Order Snapshot
	Event Event
}

var (
	ErrNotFound             = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrMissingEstimatedTime = errors.New("estimated time required for this transition")
	ErrStoreWrite           = errors.New("order store write failed")
	ErrConflict             = errors.New("order state conflict")
	ErrBadRequest           = errors.New("bad request")
)

// TransitionError explains a rejected transition well enough to show a person why.
type TransitionError struct {
	OrderID types.ID
	From    Status
	To      Status
	Role    Role
	Allowed []Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for order %s: %s -> %s not permitted for role %q", e.OrderID, e.From, e.To, e.Role)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

const (
	defaultNotifyTimeout = 15 * time.Second

	metaFrom   = "from"
	metaRole   = "role"
	metaNotify = "notify"
)

type Deps struct {
	Store     OrderStore
	Events    EventLog
	Table     *Table
	Publisher Publisher
	Notifier  Notifier
	Logger    *logrus.Entry
	Clock     func() time.Time
}

type Service struct {
	store     OrderStore
	events    EventLog
	table     *Table
	publisher Publisher
	notifier  Notifier
	log       *logrus.Entry
	now       func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:         deps.Store,
		events:        deps.Events,
		table:         deps.Table,
		publisher:     deps.Publisher,
		notifier:      deps.Notifier,
		log:           deps.Logger,
		now:           deps.Clock,
		notifyTimeout: defaultNotifyTimeout,
	}
	if s.table == nil {
		s.table = DefaultTable()
	}
	if s.log == nil {
		s.log = logger.New("order")
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) Table() *Table {
	return s.table
}

type UpdateStatusCommand struct {
	OrderID        types.ID
	To             Status
	Role           Role
	Message        *string
	EstimatedTime  *time.Time
	Location       *string
	NotifyCustomer bool
}

type RegisterCommand struct {
	ID              types.ID
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	OrderType       OrderType
	DeliveryType    DeliveryType
	DeliveryAddress string
	Message         *string
}

// UpdateStatus moves an order to cmd.To. The event is appended before the order is
// updated, and nothing is published unless both writes succeed.
func (s *Service) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) error {
	if cmd.OrderID == "" || cmd.Role == "" {
		return ErrBadRequest
	}

	// read fresh: validation must see the status as stored right now
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.observe(cmd.To, "not_found")
		} else {
			s.observe(cmd.To, "read_failed")
		}
		return err
	}

	rule, ok := s.table.RuleFor(o.Status, cmd.To)
	if !ok || !rule.Permits(cmd.Role) {
		s.observe(cmd.To, "invalid_transition")
		return &TransitionError{
			OrderID: o.ID,
			From:    o.Status,
			To:      cmd.To,
			Role:    cmd.Role,
			Allowed: s.table.NextAllowed(o.Status, cmd.Role),
		}
	}
	if rule.RequiresEstimatedTime && cmd.EstimatedTime == nil {
		s.observe(cmd.To, "missing_estimated_time")
		return ErrMissingEstimatedTime
	}

	now := s.now().UTC()
	ev := Event{
		ID:            uuid.NewString(),
		OrderID:       o.ID,
		Status:        cmd.To,
		Message:       cmd.Message,
		Timestamp:     now,
		EstimatedTime: cmd.EstimatedTime,
		Location:      cmd.Location,
		Metadata: map[string]string{
			metaFrom:   string(o.Status),
			metaRole:   string(cmd.Role),
			metaNotify: fmt.Sprintf("%t", cmd.NotifyCustomer),
		},
	}
	if err := s.events.Append(ctx, &ev); err != nil {
		s.observe(cmd.To, "append_failed")
		return fmt.Errorf("append status event: %w: %w", ErrStoreWrite, err)
	}

	eta := cmd.EstimatedTime
	if eta == nil {
		eta = o.EstimatedDeliveryTime
	}
	patch := Patch{
		Status:                cmd.To,
		CurrentStatusMessage:  cmd.Message,
		EstimatedDeliveryTime: eta,
		UpdatedAt:             now,
		ExpectedStatus:        o.Status,
	}
	if err := s.store.Update(ctx, o.ID, patch); err != nil {
		s.observe(cmd.To, "update_failed")
		s.log.WithFields(logrus.Fields{
			"order_id": o.ID,
			"event_id": ev.ID,
			"from":     o.Status,
			"to":       cmd.To,
			"error":    err.Error(),
		}).Error("status event recorded but order not advanced; needs reconciliation")
		return fmt.Errorf("update order: %w: %w", ErrStoreWrite, err)
	}

	if s.publisher != nil {
		s.publisher.Publish(o.ID, ev)
	}
	s.observe(cmd.To, "ok")

	if cmd.NotifyCustomer {
		updated := patch.Apply(*o)
		updated.Events = append(updated.Events, ev)
		s.notifyAsync(Notification{Order: updated, Event: ev})
	}
	return nil
}

// Register ingests an order from the commerce backend at pending and records its first event.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Snapshot, error) {
	cmd.OrderNumber = strings.TrimSpace(cmd.OrderNumber)
	cmd.CustomerEmail = strings.TrimSpace(cmd.CustomerEmail)
	cmd.CustomerPhone = strings.TrimSpace(cmd.CustomerPhone)
	if cmd.OrderNumber == "" || (cmd.CustomerEmail == "" && cmd.CustomerPhone == "") {
		return nil, ErrBadRequest
	}
	if cmd.OrderType == "" {
		cmd.OrderType = OrderTypeDelivery
	}
	if cmd.DeliveryType == "" {
		cmd.DeliveryType = DeliveryStandard
	}
	if !validOrderType(cmd.OrderType) || !validDeliveryType(cmd.DeliveryType) {
		return nil, ErrBadRequest
	}
	id := cmd.ID
	if id == "" {
		id = types.NewID()
	} else if !validOrderID(id) {
		return nil, ErrBadRequest
	}

	now := s.now().UTC()
	o := &Snapshot{
		ID:                   id,
		OrderNumber:          cmd.OrderNumber,
		CustomerName:         strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:        cmd.CustomerEmail,
		CustomerPhone:        cmd.CustomerPhone,
		OrderType:            cmd.OrderType,
		DeliveryType:         cmd.DeliveryType,
		DeliveryAddress:      strings.TrimSpace(cmd.DeliveryAddress),
		Status:               StatusPending,
		CurrentStatusMessage: cmd.Message,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	ev := Event{
		ID:        uuid.NewString(),
		OrderID:   id,
		Status:    StatusPending,
		Message:   cmd.Message,
		Timestamp: now,
		Metadata:  map[string]string{metaRole: string(RoleSystem)},
	}
	if err := s.events.Append(ctx, &ev); err != nil {
		s.log.WithFields(logrus.Fields{"order_id": id, "error": err.Error()}).Warn("initial status event not recorded")
	} else {
		o.Events = append(o.Events, ev)
		if s.publisher != nil {
			s.publisher.Publish(id, ev)
		}
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Snapshot, error) {
	return s.store.Get(ctx, id)
}

// NextAllowed reports where role may move the order from its current status.
func (s *Service) NextAllowed(ctx context.Context, id types.ID, role Role) ([]Status, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.table.NextAllowed(o.Status, role), nil
}

// Wait blocks until in-flight customer notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) notifyAsync(n Notification) {
	if s.notifier == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithFields(logrus.Fields{"order_id": n.Order.ID, "panic": r}).Error("customer notification panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.WithFields(logrus.Fields{
				"order_id": n.Order.ID,
				"status":   n.Event.Status,
				"error":    err.Error(),
			}).Warn("customer notification failed")
		}
	}()
}

func (s *Service) observe(to Status, outcome string) {
	label := string(to)
	if !to.Valid() {
		label = "unknown"
	}
	metrics.StatusTransitionsTotal.WithLabelValues(label, outcome).Inc()
}

// validOrderID rejects ids that cannot travel as a single path segment or that read as the
// all-orders stream selector.
func validOrderID(id types.ID) bool {
	return !strings.ContainsAny(string(id), "/?#* \t\n")
}

func validOrderType(t OrderType) bool {
	switch t {
	case OrderTypeDelivery, OrderTypePickup, OrderTypeCatering, OrderTypeDineIn:
		return true
	}
	return false
}

func validDeliveryType(t DeliveryType) bool {
	switch t {
	case DeliveryStandard, DeliveryScheduled, DeliveryExpress:
		return true
	}
	return false
}
