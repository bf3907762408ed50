package dbtest

import (
	"fmt"
	"sync"
)

// Notification is one server push: the channel and its decoded JSON payload.
type Notification struct {
	Channel string
	Payload any
}

func (n Notification) String() string {
	return fmt.Sprintf("(%q, %s)", n.Channel, repr(n.Payload))
}

// queue is an unbounded FIFO. Push never blocks; Take removes items only
// when all of them are present.
type queue struct {
	mu    sync.Mutex
	items []Notification
}

func (q *queue) Push(n Notification) {
	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take removes and returns the first n items, or nothing if fewer are queued.
func (q *queue) Take(n int) ([]Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 || len(q.items) < n {
		return nil, false
	}
	out := make([]Notification, n)
	copy(out, q.items)
	q.items = q.items[n:]
	return out, true
}

// Drain removes and returns everything queued.
func (q *queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}
