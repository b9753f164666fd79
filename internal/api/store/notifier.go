package store

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xco2/tripspot/app/observability/metrics"
	"github.com/xco2/tripspot/internal/types"
)

// Listener receives committed changes.
type Listener func(types.Change)

type subscription struct {
	id          uint64
	collections map[types.Collection]struct{}
	fn          Listener
}

func (s *subscription) wants(c types.Change) bool {
	if len(s.collections) == 0 {
		return true
	}
	for _, col := range c.Collections {
		if _, ok := s.collections[col]; ok {
			return true
		}
	}
	return false
}

// Notifier fans committed changes out to listeners. Delivery happens on the
// writer's goroutine, outside the registry lock, in registration order.
type Notifier struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []*subscription
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn for changes touching any of collections, or all changes when none are given.
// The returned func removes the listener and is safe to call more than once.
func (n *Notifier) Subscribe(fn Listener, collections ...types.Collection) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	sub := &subscription{id: n.nextID, fn: fn, collections: make(map[types.Collection]struct{}, len(collections))}
	for _, c := range collections {
		sub.collections[c] = struct{}{}
	}
	n.subs = append(n.subs, sub)

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(sub.id) })
	}
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, s := range n.subs {
		if s.id == id {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Len reports the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Publish delivers c to every interested listener.
func (n *Notifier) Publish(ctx context.Context, c types.Change) {
	n.mu.RLock()
	targets := make([]*subscription, 0, len(n.subs))
	for _, s := range n.subs {
		if s.wants(c) {
			targets = append(targets, s)
		}
	}
	n.mu.RUnlock()

	for _, s := range targets {
		s.fn(c)
	}
	if len(targets) > 0 {
		metrics.Get().StoreNotificationsTotal.Add(ctx, int64(len(targets)),
			metric.WithAttributes(attribute.Int("collections", len(c.Collections))))
	}
}
