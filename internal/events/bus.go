package events

import (
	"context"
	"sync"
)

// Bus fan-outs sale events to in-process subscribers (SSE clients). Each
// subscriber only receives events of the company it subscribed for.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

type subscriber struct {
	companyID int64
	ch        chan Event
}

// NewBus initialises an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for companyID and returns a channel which
// will receive its events. The channel is closed when ctx ends.
func (b *Bus) Subscribe(ctx context.Context, companyID int64) <-chan Event {
	ch := make(chan Event, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{companyID: companyID, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers ev to the subscribers of ev.CompanyID.
func (b *Bus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.companyID != ev.CompanyID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
	return nil
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
