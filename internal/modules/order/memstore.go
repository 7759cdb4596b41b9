// README: In-process order store and event log for local development and tests.
package order

import (
	"context"
	"maps"
	"sort"
	"sync"

	"ordertrack/internal/types"
)

// MemoryStore implements OrderStore and EventLog over maps. Every read returns a deep copy.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[types.ID]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[types.ID]*Snapshot)}
}

func (m *MemoryStore) Create(_ context.Context, o *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return ErrConflict
	}
	cp := cloneSnapshot(*o)
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneSnapshot(*o)
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, id types.ID, p Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if p.ExpectedStatus != "" && o.Status != p.ExpectedStatus {
		return ErrConflict
	}
	updated := p.Apply(*o)
	m.orders[id] = &updated
	return nil
}

func (m *MemoryStore) Append(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[e.OrderID]
	if !ok {
		return ErrNotFound
	}
	o.Events = append(o.Events, cloneEvent(*e))
	return nil
}

func (m *MemoryStore) FindByContact(_ context.Context, q ContactQuery) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Snapshot
	for _, o := range m.orders {
		if q.Matches(*o) {
			out = append(out, cloneSnapshot(*o))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, f Filter) ([]Snapshot, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []Snapshot
	for _, o := range m.orders {
		if f.Matches(*o) {
			matched = append(matched, cloneSnapshot(*o))
		}
	}
	sortNewestFirst(matched)
	total := len(matched)
	if f.Offset >= total {
		return []Snapshot{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func (m *MemoryStore) StatusCounts(_ context.Context) (map[Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[Status]int, len(AllStatuses))
	for _, o := range m.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func sortNewestFirst(orders []Snapshot) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func cloneSnapshot(o Snapshot) Snapshot {
	if o.Events != nil {
		events := make([]Event, len(o.Events))
		for i, e := range o.Events {
			events[i] = cloneEvent(e)
		}
		o.Events = events
	}
	return o
}

func cloneEvent(e Event) Event {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}
