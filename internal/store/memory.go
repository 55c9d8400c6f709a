package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"orderbridge/internal/model"
)

const defaultMemoryCapacity = 500

type memOrder struct {
	order model.Order
	seq   uint64 // insertion sequence, breaks createdAt ties
}

// Memory is an in-memory store used when no DATABASE_URL is set. It keeps at most
// capacity orders; inserting beyond that evicts the oldest by ingestion time.
type Memory struct {
	mu       sync.Mutex
	orders   map[string]*memOrder // externalId -> order
	seq      uint64
	capacity int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{orders: map[string]*memOrder{}, capacity: capacity}
}

func (m *Memory) Upsert(ctx context.Context, o model.Order) error {
	if err := validateUpsert(o); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.orders[o.ExternalID]; ok {
		cur.order = mergeUpsert(cur.order, o)
		return nil
	}
	rec := insertUpsert(o)
	m.seq++
	m.orders[o.ExternalID] = &memOrder{order: rec, seq: m.seq}
	for len(m.orders) > m.capacity {
		m.evictOldest()
	}
	return nil
}

func (m *Memory) evictOldest() {
	var oldest *memOrder
	for _, r := range m.orders {
		if oldest == nil || older(r, oldest) {
			oldest = r
		}
	}
	if oldest != nil {
		delete(m.orders, oldest.order.ExternalID)
	}
}

func older(a, b *memOrder) bool {
	if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
		return a.order.CreatedAt.Before(b.order.CreatedAt)
	}
	return a.seq < b.seq
}

func (m *Memory) FindByExternalID(ctx context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	return r.order.Clone(), nil
}

func (m *Memory) ListRecent(ctx context.Context, limit int) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := make([]*memOrder, 0, len(m.orders))
	for _, r := range m.orders {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return older(recs[j], recs[i]) })
	if limit = listLimit(limit); len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.Order, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.order.Clone())
	}
	return out, nil
}

func (m *Memory) UpdateFields(ctx context.Context, id string, patch model.OrderPatch) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.orders[id]
	if !ok {
		return model.Order{}, ErrNotFound
	}
	if !patch.Empty() {
		patch.Apply(&r.order)
		r.order.UpdatedAt = time.Now().UTC()
	}
	return r.order.Clone(), nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
