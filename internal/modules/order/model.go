// README: Order tracking snapshot, status events and status definitions.
package order

import (
	"time"

	"ordertrack/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// AllStatuses lists every status in forward order, cancelled last.
var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Rank is the position of s in AllStatuses, or -1 when s is unknown.
func (s Status) Rank() int {
	for i, v := range AllStatuses {
		if v == s {
			return i
		}
	}
	return -1
}

// Role is the opaque name of whoever requests a transition.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleKitchen  Role = "kitchen"
	RoleDriver   Role = "driver"
	RoleSystem   Role = "system"
	RoleCustomer Role = "customer"
)

// Privileged roles may open wildcard streams.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleStaff
}

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
	OrderTypeCatering OrderType = "catering"
	OrderTypeDineIn   OrderType = "dine_in"
)

type DeliveryType string

const (
	DeliveryStandard  DeliveryType = "standard"
	DeliveryScheduled DeliveryType = "scheduled"
	DeliveryExpress   DeliveryType = "express"
)

// Event is one recorded status change. It is never mutated after creation.
type Event struct {
	ID            string            `json:"id"`
	OrderID       types.ID          `json:"orderId"`
	Status        Status            `json:"status"`
	Message       *string           `json:"message,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	EstimatedTime *time.Time        `json:"estimatedTime,omitempty"`
	Location      *string           `json:"location,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the current tracking projection of an order as held by the order store.
type Snapshot struct {
	ID                    types.ID     `json:"id"`
	OrderNumber           string       `json:"orderNumber"`
	CustomerName          string       `json:"customerName"`
	CustomerEmail         string       `json:"customerEmail,omitempty"`
	CustomerPhone         string       `json:"customerPhone,omitempty"`
	OrderType             OrderType    `json:"orderType"`
	DeliveryType          DeliveryType `json:"deliveryType"`
	DeliveryAddress       string       `json:"deliveryAddress,omitempty"`
	Status                Status       `json:"status"`
	CurrentStatusMessage  *string      `json:"currentStatusMessage,omitempty"`
	EstimatedDeliveryTime *time.Time   `json:"estimatedDeliveryTime,omitempty"`
	Events                []Event      `json:"events"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

// Patch is the mutation the tracking service applies after a successful transition.
// ExpectedStatus is the status validation ran against; stores refuse the write when the
// order has moved on since.
type Patch struct {
	Status                Status
	CurrentStatusMessage  *string
	EstimatedDeliveryTime *time.Time
	UpdatedAt             time.Time
	ExpectedStatus        Status
}

// Apply returns a copy of s with p applied. The event list is left untouched.
func (p Patch) Apply(s Snapshot) Snapshot {
	s.Status = p.Status
	s.CurrentStatusMessage = p.CurrentStatusMessage
	s.EstimatedDeliveryTime = p.EstimatedDeliveryTime
	s.UpdatedAt = p.UpdatedAt
	return s
}

// Filter selects orders for the admin list. From is inclusive and To exclusive, both on CreatedAt.
type Filter struct {
	Statuses     []Status
	From         *time.Time
	To           *time.Time
	Search       string
	OrderType    OrderType
	DeliveryType DeliveryType
	Limit        int
	Offset       int
}

type ListResult struct {
	Orders       []Snapshot     `json:"orders"`
	TotalCount   int            `json:"totalCount"`
	StatusCounts map[Status]int `json:"statusCounts"`
}
