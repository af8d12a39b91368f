package repo

import (
	"sync"

	"github.com/google/uuid"
)

// UpdateListener is called once per successful update with the repositories
// whose catalogs changed.
type UpdateListener func(changed []Repository)

// publisher delivers the store's updated event to registered listeners.
// Subscriptions are keyed by opaque uuid tokens so callers can unsubscribe
// without holding the callback itself.
type publisher struct {
	mu        sync.Mutex
	listeners map[uuid.UUID]UpdateListener
}

func newPublisher() *publisher {
	return &publisher{listeners: make(map[uuid.UUID]UpdateListener)}
}

func (p *publisher) subscribe(fn UpdateListener) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	token := uuid.New()
	p.listeners[token] = fn
	return token
}

func (p *publisher) unsubscribe(token uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners, token)
}

func (p *publisher) notify(changed []Repository) {
	p.mu.Lock()
	fns := make([]UpdateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	// Listeners run outside the lock so they may unsubscribe themselves.
	for _, fn := range fns {
		fn(changed)
	}
}
