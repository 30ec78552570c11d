// Package observer delivers versioned snapshots to subscribers.
package observer

import "sync"

type subscriber[S any] struct {
	id int
	fn func(S)
}

// Hub fans snapshots out in version order. A snapshot older than one already
// delivered is dropped, so subscribers never observe state going backwards.
// Subscribers run synchronously, in subscription order, and must not call
// back into the hub.
type Hub[S any] struct {
	mu   sync.Mutex
	subs []subscriber[S]
	next int

	deliver sync.Mutex
	last    uint64
}

func NewHub[S any]() *Hub[S] {
	return &Hub[S]{}
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[S]) Subscribe(fn func(S)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	h.subs = append(h.subs, subscriber[S]{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Active reports whether anyone is listening.
func (h *Hub[S]) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

// Notify delivers snapshot unless a newer version already went out.
func (h *Hub[S]) Notify(version uint64, snapshot S) {
	h.deliver.Lock()
	defer h.deliver.Unlock()
	if version <= h.last {
		return
	}
	h.last = version

	h.mu.Lock()
	subs := make([]func(S), len(h.subs))
	for i, s := range h.subs {
		subs[i] = s.fn
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}
