// Package events is the in-process publish/subscribe registry that replaces
// browser storage polling with direct notification of interested consumers.
package events

import (
	"sync"
	"time"
)

// Event names published by the services.
const (
	Products       = "products"
	Orders         = "orders"
	DeliveryAgents = "deliveryAgents"
	StatsUpdate    = "statsUpdate"
	Tracking       = "tracking"
	OrderStatus    = "orderStatus"
	Notifications  = "notifications"
)

// SubscriptionID identifies a registered handler for Unsubscribe.
type SubscriptionID uint64

// Event is delivered to every matching handler. All handlers receive the same value.
type Event struct {
	Name      string
	Timestamp time.Time
	Payload   any
}

// Handler runs synchronously on the publisher's goroutine.
type Handler func(Event)

type subscriber struct {
	id SubscriptionID
	fn Handler
}

// Bus maps event names to ordered handler lists.
type Bus struct {
	mu     sync.RWMutex
	byName map[string][]subscriber
	all    []subscriber
	nextID SubscriptionID
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{byName: make(map[string][]subscriber), now: time.Now}
}

// Subscribe appends fn to the handlers for name. The same function may be registered more than once.
func (b *Bus) Subscribe(name string, fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.byName[name] = append(b.byName[name], subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

// SubscribeAll registers fn for every event name.
func (b *Bus) SubscribeAll(fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.all = append(b.all, subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes the handler registered under id for name. Unknown ids are ignored.
// Pass an empty name to remove a SubscribeAll handler.
func (b *Bus) Unsubscribe(name string, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == "" {
		b.all = remove(b.all, id)
		return
	}
	subs := remove(b.byName[name], id)
	if len(subs) == 0 {
		delete(b.byName, name)
		return
	}
	b.byName[name] = subs
}

func remove(subs []subscriber, id SubscriptionID) []subscriber {
	for i, s := range subs {
		if s.id == id {
			out := make([]subscriber, 0, len(subs)-1)
			out = append(out, subs[:i]...)
			return append(out, subs[i+1:]...)
		}
	}
	return subs
}

// Publish delivers payload to the handlers registered for name, then to SubscribeAll
// handlers, in registration order. The handler list is snapshotted first so handlers
// may subscribe or unsubscribe without deadlocking.
func (b *Bus) Publish(name string, payload any) {
	evt := Event{Name: name, Timestamp: b.now(), Payload: payload}
	b.mu.RLock()
	subs := make([]subscriber, 0, len(b.byName[name])+len(b.all))
	subs = append(subs, b.byName[name]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(evt)
	}
}

// Count returns the number of handlers for name, excluding SubscribeAll handlers.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byName[name])
}
