package bus

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

type subscription[E any] struct {
	id      string
	handler Handler[E]
	active  bool
	bus     *inMemoryBus[E]
}

func (s *subscription[E]) ID() string { return s.id }

func (s *subscription[E]) IsActive() bool {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.active
}

func (s *subscription[E]) Cancel() {
	s.bus.remove(s)
}

type inMemoryBus[E any] struct {
	mu   sync.RWMutex
	subs []*subscription[E]
}

// New creates an empty Bus.
func New[E any]() Bus[E] {
	return &inMemoryBus[E]{}
}

func (b *inMemoryBus[E]) Subscribe(handler Handler[E]) Subscription {
	s := &subscription[E]{id: uuid.NewString(), handler: handler, active: true, bus: b}
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

func (b *inMemoryBus[E]) Publish(event E) error {
	b.mu.RLock()
	subs := make([]*subscription[E], len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var all error
	for _, s := range subs {
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus[E]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *inMemoryBus[E]) remove(s *subscription[E]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}
