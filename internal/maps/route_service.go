// README: ETA suggestions for admins: kitchen lead time plus Google Maps driving time.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"ordertrack/internal/modules/order"
)

var (
	ErrNoRoute       = errors.New("no route found")
	ErrNoDestination = errors.New("order has no delivery address")
	ErrTerminal      = errors.New("order is already finished")
)

// Directions is the subset of *maps.Client the route service uses.
type Directions interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// kitchenLeadTime is how much kitchen work is left before an order in a status can leave.
var kitchenLeadTime = map[order.Status]time.Duration{
	order.StatusPending:   25 * time.Minute,
	order.StatusConfirmed: 20 * time.Minute,
	order.StatusPreparing: 10 * time.Minute,
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client Directions
	origin string
	now    func() time.Time
}

// NewRouteService creates a RouteService with the given API key. origin is the kitchen
// address used when a request does not name one.
func NewRouteService(apiKey, origin string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return newRouteService(client, origin), nil
}

func newRouteService(client Directions, origin string) *RouteService {
	return &RouteService{client: client, origin: origin, now: time.Now}
}

// GetTravelEstimate returns the driving duration and distance text from origin to destination.
func (s *RouteService) GetTravelEstimate(ctx context.Context, origin, destination string) (time.Duration, string, error) {
	r := &maps.DirectionsRequest{
		Origin:        origin,
		Destination:   destination,
		Mode:          maps.TravelModeDriving,
		DepartureTime: "now",
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, "", fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, "", ErrNoRoute
	}

	leg := routes[0].Legs[0]
	travel := leg.Duration
	if leg.DurationInTraffic > 0 {
		travel = leg.DurationInTraffic
	}
	return travel, leg.Distance.HumanReadable, nil
}

type Suggestion struct {
	OrderID       string        `json:"orderId"`
	Status        order.Status  `json:"status"`
	Origin        string        `json:"origin,omitempty"`
	Destination   string        `json:"destination,omitempty"`
	Distance      string        `json:"distance,omitempty"`
	KitchenTime   time.Duration `json:"-"`
	TravelTime    time.Duration `json:"-"`
	KitchenMins   int           `json:"kitchenMinutes"`
	TravelMins    int           `json:"travelMinutes"`
	EstimatedTime time.Time     `json:"estimatedTime"`
}

// SuggestETA proposes an estimated time for o. Pickup and dine-in orders only count the
// kitchen; everything else adds the drive from origin (or the kitchen) to the delivery address.
func (s *RouteService) SuggestETA(ctx context.Context, o order.Snapshot, origin string) (*Suggestion, error) {
	if o.Status.Terminal() {
		return nil, ErrTerminal
	}
	sug := &Suggestion{
		OrderID:     string(o.ID),
		Status:      o.Status,
		KitchenTime: kitchenLeadTime[o.Status],
	}

	if o.OrderType != order.OrderTypePickup && o.OrderType != order.OrderTypeDineIn {
		dest := strings.TrimSpace(o.DeliveryAddress)
		if dest == "" {
			return nil, ErrNoDestination
		}
		if origin = strings.TrimSpace(origin); origin == "" {
			origin = s.origin
		}
		travel, distance, err := s.GetTravelEstimate(ctx, origin, dest)
		if err != nil {
			return nil, err
		}
		sug.Origin, sug.Destination, sug.Distance, sug.TravelTime = origin, dest, distance, travel
	}

	sug.KitchenMins = int(sug.KitchenTime.Round(time.Minute) / time.Minute)
	sug.TravelMins = int(sug.TravelTime.Round(time.Minute) / time.Minute)
	sug.EstimatedTime = s.now().UTC().Add(sug.KitchenTime + sug.TravelTime).Truncate(time.Minute)
	return sug, nil
}
