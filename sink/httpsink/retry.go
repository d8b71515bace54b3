package httpsink

import (
	"math/rand"
	"sync"
	"time"

	"sinkflow/internal/event"
)

// Backoff spaces out redelivery attempts of one event.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
}

// Delay returns the wait before the given attempt; attempt 2 is the first retry.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	max := b.MaxDelay
	if max < base {
		max = base
	}
	d := base
	for i := 2; i < attempt && d < max; i++ {
		d *= 2
	}
	if b.Jitter {
		d = time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	}
	if d > max {
		d = max
	}
	return d
}

type retryItem struct {
	ev      event.ProfileEvent
	attempt int
	due     time.Time
}

// retryQueue holds requeued events until their backoff elapses. push is
// called from completion workers and never blocks on the consumer.
type retryQueue struct {
	mu     sync.Mutex
	items  []retryItem
	signal chan struct{}
}

func newRetryQueue() *retryQueue {
	return &retryQueue{signal: make(chan struct{}, 1)}
}

func (q *retryQueue) push(it retryItem) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// popDue removes the earliest due item. When nothing is due it reports how
// long to wait; wait < 0 means the queue is empty.
func (q *retryQueue) popDue(now time.Time) (it retryItem, ok bool, wait time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return retryItem{}, false, -1
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		if q.items[i].due.Before(q.items[best].due) {
			best = i
		}
	}
	if d := q.items[best].due.Sub(now); d > 0 {
		return retryItem{}, false, d
	}
	it = q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	return it, true, 0
}

func (q *retryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
