package kafka

import (
	"context"
	"sync"
)

type slotNode[T any] struct {
	payload    T
	prev, next *slotNode[T]
}

// window tracks the unacknowledged records of one partition claim in
// arrival order. Acks may come back in any order; the watermark only moves
// over a fully acknowledged prefix, so a commit never skips a record that
// is still being retried downstream.
type window[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	limit int
	size  int

	head, tail *slotNode[T]
	mark       T
	marked     bool
}

func newWindow[T any](limit int) *window[T] {
	if limit <= 0 {
		limit = 1
	}
	w := &window[T]{limit: limit}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// add blocks while limit records are outstanding. The returned resolve is
// safe to call from any goroutine; only its first call counts. It reports
// the new watermark when the call advanced it.
func (w *window[T]) add(ctx context.Context, p T) (resolve func() (T, bool), err error) {
	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		w.cond.Broadcast()
		w.mu.Unlock()
	})
	defer stop()

	w.mu.Lock()
	for w.size >= w.limit {
		if err := ctx.Err(); err != nil {
			w.mu.Unlock()
			return nil, err
		}
		w.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	n := &slotNode[T]{payload: p, prev: w.tail}
	if w.tail != nil {
		w.tail.next = n
	} else {
		w.head = n
	}
	w.tail = n
	w.size++
	w.mu.Unlock()

	var once sync.Once
	return func() (mark T, advanced bool) {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			mark, advanced = w.resolveLocked(n)
			w.cond.Broadcast()
		})
		return mark, advanced
	}, nil
}

func (w *window[T]) resolveLocked(n *slotNode[T]) (T, bool) {
	w.size--
	if n.prev != nil {
		// predecessor still pending: it now also stands for n
		n.prev.payload = n.payload
		n.prev.next = n.next
		if n.next != nil {
			n.next.prev = n.prev
		} else {
			w.tail = n.prev
		}
		var zero T
		return zero, false
	}
	w.mark, w.marked = n.payload, true
	w.head = n.next
	if n.next != nil {
		n.next.prev = nil
	} else {
		w.tail = nil
	}
	return w.mark, true
}

func (w *window[T]) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *window[T]) watermark() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mark, w.marked
}
