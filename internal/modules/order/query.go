// README: Read-side operations: customer contact lookup and the admin filtered list.
package order

import (
	"context"
	"slices"
	"strings"
	"unicode"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	minPhoneDigits = 7
)

// ContactQuery is a parsed customer-facing lookup. Exactly one of Email and PhoneDigits is set.
type ContactQuery struct {
	Email       string
	PhoneDigits string
	OrderNumber string
}

// ParseContact classifies identifier as an email or a phone number. ok is false when it is neither.
func ParseContact(identifier, orderNumber string) (ContactQuery, bool) {
	identifier = strings.TrimSpace(identifier)
	q := ContactQuery{OrderNumber: strings.TrimSpace(orderNumber)}
	if at := strings.Index(identifier, "@"); at > 0 && at < len(identifier)-1 {
		q.Email = strings.ToLower(identifier)
		return q, true
	}
	digits, ok := phoneDigits(identifier)
	if !ok || len(digits) < minPhoneDigits {
		return ContactQuery{}, false
	}
	q.PhoneDigits = digits
	return q, true
}

func phoneDigits(v string) (string, bool) {
	var b strings.Builder
	for _, r := range v {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return "", false
		}
	}
	return b.String(), true
}

// Matches reports whether o belongs to the customer described by q.
func (q ContactQuery) Matches(o Snapshot) bool {
	switch {
	case q.Email != "":
		if !strings.EqualFold(strings.TrimSpace(o.CustomerEmail), q.Email) {
			return false
		}
	case q.PhoneDigits != "":
		d, _ := phoneDigits(o.CustomerPhone)
		if len(d) < minPhoneDigits {
			return false
		}
		// tolerate a country code on either side
		if !strings.HasSuffix(d, q.PhoneDigits) && !strings.HasSuffix(q.PhoneDigits, d) {
			return false
		}
	default:
		return false
	}
	if q.OrderNumber != "" {
		return strings.Contains(strings.ToLower(o.OrderNumber), strings.ToLower(q.OrderNumber))
	}
	return true
}

// Normalize clamps paging fields to their defaults and bounds.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return f
}

// Matches applies every filter field except paging.
func (f Filter) Matches(o Snapshot) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !o.CreatedAt.Before(*f.To) {
		return false
	}
	if f.OrderType != "" && o.OrderType != f.OrderType {
		return false
	}
	if f.DeliveryType != "" && o.DeliveryType != f.DeliveryType {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		for _, v := range []string{o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerPhone} {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// LookupByContact finds a customer's orders by email or phone, optionally narrowed by order
// number. Nothing found, or an identifier that is neither, gives an empty slice.
func (s *Service) LookupByContact(ctx context.Context, identifier, orderNumber string) ([]Snapshot, error) {
	q, ok := ParseContact(identifier, orderNumber)
	if !ok {
		return []Snapshot{}, nil
	}
	orders, err := s.store.FindByContact(ctx, q)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []Snapshot{}
	}
	return orders, nil
}

// FilteredList pages through the orders matching f. StatusCounts always covers every order so
// dashboard totals do not move with the filter.
func (s *Service) FilteredList(ctx context.Context, f Filter) (*ListResult, error) {
	f = f.Normalize()
	orders, total, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []Snapshot{}
	}
	if counts == nil {
		counts = make(map[Status]int, len(AllStatuses))
	}
	for _, st := range AllStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return &ListResult{Orders: orders, TotalCount: total, StatusCounts: counts}, nil
}
