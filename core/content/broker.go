package content

import (
	"sync"
	"time"
)

type Action string

const (
	Created Action = "created"
	Updated Action = "updated"
	Deleted Action = "deleted"
)

// Change is published after every successful write.
type Change struct {
	Collection Collection `json:"collection"`
	Action     Action     `json:"action"`
	ID         string     `json:"id"`
	At         time.Time  `json:"at"`
}

// Broker fans content changes out to in-process subscribers, so lists can be refetched.
type Broker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	collection Collection // empty: every collection
	fn         func(Change)
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]subscription)}
}

// OnChange calls fn after each write to collection, or to any collection if it is empty.
// fn runs on the writer's goroutine and must not block.
// The returned func unsubscribes; calling it more than once is a no-op.
func (b *Broker) OnChange(collection Collection, fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{collection: collection, fn: fn}

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *Broker) Publish(ch Change) {
	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.collection == "" || sub.collection == ch.Collection {
			fns = append(fns, sub.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
