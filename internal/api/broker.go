package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"orderbridge/internal/model"
)

const ordersTopic = "orders"

// Order event types pushed to /orders/ws subscribers.
const (
	EventOrderIngested        = "order.ingested"
	EventOrderUpdated         = "order.updated"
	EventOrderShipmentCreated = "order.shipment_created"
	EventOrderFulfilled       = "order.fulfilled"
)

type OrderEvent struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	ExternalID string       `json:"externalId"`
	At         time.Time    `json:"at"`
	Order      *model.Order `json:"order,omitempty"`
}

func newOrderEvent(typ string, o model.Order) OrderEvent {
	c := o.Clone()
	return OrderEvent{ID: uuid.NewString(), Type: typ, ExternalID: o.ExternalID, At: time.Now().UTC(), Order: &c}
}

// Broker fans events out to in-process subscribers. Slow subscribers drop events.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan OrderEvent]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan OrderEvent]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan OrderEvent {
	ch := make(chan OrderEvent, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan OrderEvent]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(topic string, ch chan OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *Broker) Publish(topic string, evt OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }
