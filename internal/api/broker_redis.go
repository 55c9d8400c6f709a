package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

type EventBroker interface {
	Subscribe(topic string) chan OrderEvent
	Unsubscribe(topic string, ch chan OrderEvent)
	Publish(topic string, evt OrderEvent)
	Close() error
}

// RedisBroker implements EventBroker over Redis Pub/Sub so every replica's
// websocket clients see events ingested by any replica.
type RedisBroker struct {
	rdb *redis.Client
	log *slog.Logger

	mu   sync.Mutex
	subs map[chan OrderEvent]*redis.PubSub
}

// NewRedisBroker connects to url and pings it before returning.
func NewRedisBroker(ctx context.Context, url string, log *slog.Logger) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	b := &RedisBroker{rdb: redis.NewClient(opt), log: log, subs: map[chan OrderEvent]*redis.PubSub{}}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := b.Ping(pingCtx); err != nil {
		_ = b.rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return b, nil
}

// Ping checks the Redis connection.
func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Subscribe(topic string) chan OrderEvent {
	ch := make(chan OrderEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(topic))
	// initial consume to ensure subscription
	if _, err := ps.Receive(ctx); err != nil {
		b.log.Warn("redis subscribe failed", "topic", topic, "err", err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt OrderEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("redis event undecodable", "err", err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the subscription; ch is closed once the reader goroutine exits.
func (b *RedisBroker) Unsubscribe(topic string, ch chan OrderEvent) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(topic string, evt OrderEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(topic), data).Err(); err != nil {
		b.log.Warn("redis publish failed", "topic", topic, "type", evt.Type, "err", err)
	}
}

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) chanName(topic string) string { return "orderbridge:" + topic }
