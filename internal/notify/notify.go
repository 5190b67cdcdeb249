// Package notify delivers upsert notifications to list views in the same
// session so they can patch their rows without re-querying.
//
// A Bus is owned by whoever creates the session and is passed explicitly
// to publishers and subscribers. Delivery is synchronous, best effort and
// unbuffered: a view that is not subscribed when an upsert is published
// never sees it.
package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tradebook/trade-service/internal/model"
)

// Upsert is the outcome of one successful write.
type Upsert struct {
	Trade    model.Trade `json:"trade"`
	Replaced bool        `json:"replaced"`
}

// Verb returns the user-facing wording for the write.
func (u Upsert) Verb() string {
	if u.Replaced {
		return "replaced"
	}
	return "saved"
}

// Handler receives upserts.
type Handler func(Upsert)

// Bus fans out upserts to the handlers subscribed at publish time.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]Handler)}
}

// Subscription is returned by Subscribe; Close detaches the handler.
type Subscription struct {
	ID  string
	bus *Bus
}

// Close removes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.ID)
}

// Subscribe registers h for every later Publish.
func (b *Bus) Subscribe(h Handler) *Subscription {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = h
	b.mu.Unlock()
	return &Subscription{ID: id, bus: b}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers u to every current subscriber. A panicking handler is
// logged and skipped; it does not stop delivery to the others.
func (b *Bus) Publish(u Upsert) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		deliver(h, u)
	}
}

func deliver(h Handler, u Upsert) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("upsert handler panicked", "trade_id", u.Trade.TradeID, "version", u.Trade.Version, "panic", r)
		}
	}()
	h(u)
}
