// README: Contact lookup and filtered list tests.
package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordertrack/internal/types"
)

func TestParseContact(t *testing.T) {
	cases := []struct {
		in        string
		wantOK    bool
		wantEmail string
		wantPhone string
	}{
		{"Ada@Example.com", true, "ada@example.com", ""},
		{"  ada@example.com ", true, "ada@example.com", ""},
		{"+1 (555) 010-0199", true, "", "15550100199"},
		{"555-0100", true, "", "5550100"},
		{"555-01", false, "", ""},
		{"@example.com", false, "", ""},
		{"ada@", false, "", ""},
		{"call me maybe", false, "", ""},
		{"", false, "", ""},
	}
	for _, tc := range cases {
		q, ok := ParseContact(tc.in, "")
		if ok != tc.wantOK {
			t.Errorf("ParseContact(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			continue
		}
		if q.Email != tc.wantEmail || q.PhoneDigits != tc.wantPhone {
			t.Errorf("ParseContact(%q) = %+v", tc.in, q)
		}
	}
}

func TestLookupByContactNoMatchIsEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "o1", StatusPending, "ada@example.com", "+1 415 555 2671")

	orders, err := h.svc.LookupByContact(ctx, "555-0100", "")
	require.NoError(t, err)
	require.NotNil(t, orders)
	assert.Empty(t, orders)

	orders, err = h.svc.LookupByContact(ctx, "not an identifier", "")
	require.NoError(t, err)
	require.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestLookupByContactMatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "a1", StatusPending, "Ada@Example.com", "(415) 555-2671")
	h.now = h.now.Add(time.Minute)
	h.seed(t, "a2", StatusReady, "ada@example.com", "")
	h.seed(t, "b1", StatusPending, "bob@example.com", "415-555-9999")

	orders, err := h.svc.LookupByContact(ctx, "ADA@example.com", "")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	// newest first
	assert.Equal(t, types.ID("a2"), orders[0].ID)
	assert.Equal(t, types.ID("a1"), orders[1].ID)

	orders, err = h.svc.LookupByContact(ctx, "+1 415 555 2671", "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, types.ID("a1"), orders[0].ID)

	orders, err = h.svc.LookupByContact(ctx, "ada@example.com", "ord-a2")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, types.ID("a2"), orders[0].ID)

	orders, err = h.svc.LookupByContact(ctx, "ada@example.com", "ORD-b1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestFilteredListCountsCoverEveryOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seed(t, "o1", StatusPending, "a@example.com", "")
	h.seed(t, "o2", StatusPending, "b@example.com", "")
	h.seed(t, "o3", StatusPreparing, "c@example.com", "")
	h.seed(t, "o4", StatusDelivered, "d@example.com", "")

	res, err := h.svc.FilteredList(ctx, Filter{Statuses: []Status{StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	assert.Len(t, res.Orders, 2)
	assert.Equal(t, 2, res.StatusCounts[StatusPending])
	assert.Equal(t, 1, res.StatusCounts[StatusPreparing])
	assert.Equal(t, 1, res.StatusCounts[StatusDelivered])
	assert.Equal(t, 0, res.StatusCounts[StatusCancelled])
	assert.Len(t, res.StatusCounts, len(AllStatuses))
}

func TestFilteredListPagingAndSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, id := range []types.ID{"o1", "o2", "o3", "o4", "o5"} {
		h.seed(t, id, StatusPending, string(id)+"@example.com", "")
		h.now = h.now.Add(time.Minute)
	}

	res, err := h.svc.FilteredList(ctx, Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, types.ID("o4"), res.Orders[0].ID)
	assert.Equal(t, types.ID("o3"), res.Orders[1].ID)

	res, err = h.svc.FilteredList(ctx, Filter{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
	assert.NotNil(t, res.Orders)
	assert.Empty(t, res.Orders)

	res, err = h.svc.FilteredList(ctx, Filter{Search: "O3@EXAMPLE"})
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	assert.Equal(t, types.ID("o3"), res.Orders[0].ID)
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{Limit: 0, Offset: -3, Search: "  pad "}.Normalize()
	assert.Equal(t, DefaultListLimit, f.Limit)
	assert.Equal(t, 0, f.Offset)
	assert.Equal(t, "pad", f.Search)

	f = Filter{Limit: 10_000}.Normalize()
	assert.Equal(t, MaxListLimit, f.Limit)
}

func TestFilterMatchesDateRangeAndTypes(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	o := Snapshot{
		OrderNumber:  "ORD-77",
		Status:       StatusReady,
		OrderType:    OrderTypePickup,
		DeliveryType: DeliveryExpress,
		CreatedAt:    base,
	}
	before, after := base.Add(-time.Hour), base.Add(time.Hour)

	assert.True(t, Filter{From: &before, To: &after}.Matches(o))
	assert.False(t, Filter{From: &after}.Matches(o))
	assert.False(t, Filter{To: &before}.Matches(o))
	assert.True(t, Filter{From: &base}.Matches(o))
	assert.False(t, Filter{To: &base}.Matches(o))
	assert.True(t, Filter{OrderType: OrderTypePickup, DeliveryType: DeliveryExpress}.Matches(o))
	assert.False(t, Filter{OrderType: OrderTypeDelivery}.Matches(o))
	assert.False(t, Filter{Statuses: []Status{StatusPending, StatusConfirmed}}.Matches(o))
	assert.True(t, Filter{Search: "ord-7"}.Matches(o))
}
