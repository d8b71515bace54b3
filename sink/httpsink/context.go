package httpsink

import (
	"context"
	"sync/atomic"
	"time"

	"sinkflow/internal/event"
	"sinkflow/internal/slot"
)

// Recorder receives exactly one call per terminal attempt outcome.
type Recorder interface {
	RecordOutcome(ev event.ProfileEvent, taskName string, success bool, sentAt time.Time)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutcome(event.ProfileEvent, string, bool, time.Time) {}

// Context is the read-mostly registry shared by the dispatcher and its
// completion workers, plus the only side-effecting hooks of an attempt.
type Context struct {
	snap     atomic.Pointer[Snapshot]
	slots    *slot.Pool
	recorder Recorder
	retries  *retryQueue
	backoff  Backoff
}

func NewContext(snap *Snapshot, slots *slot.Pool, rec Recorder, backoff Backoff) *Context {
	if rec == nil {
		rec = nopRecorder{}
	}
	c := &Context{slots: slots, recorder: rec, retries: newRetryQueue(), backoff: backoff}
	c.snap.Store(snap)
	return c
}

// Publish swaps in a new snapshot. In-flight attempts keep the one they loaded.
func (c *Context) Publish(s *Snapshot) { c.snap.Store(s) }

func (c *Context) Snapshot() *Snapshot { return c.snap.Load() }

func (c *Context) Route(stream string) (RouteConfig, bool) { return c.Snapshot().Route(stream) }

func (c *Context) Settings() Settings { return c.Snapshot().Settings() }

func (c *Context) RecordOutcome(ev event.ProfileEvent, taskName string, success bool, sentAt time.Time) {
	c.recorder.RecordOutcome(ev, taskName, success, sentAt)
}

func (c *Context) AcquireSlot(ctx context.Context) (*slot.Token, error) {
	return c.slots.Acquire(ctx)
}

func (c *Context) Release(tok *slot.Token) { c.slots.Release(tok) }

// ReturnAndRetry frees the request's slot before handing the event back,
// so an event is never in flight twice.
func (c *Context) ReturnAndRetry(tok *slot.Token, req *DispatchRequest) {
	c.slots.Release(tok)
	next := req.Attempt + 1
	c.retries.push(retryItem{ev: req.Event, attempt: next, due: time.Now().Add(c.backoff.Delay(next))})
}

func (c *Context) InFlight() int64 { return c.slots.InFlight() }

func (c *Context) Pending() int { return c.retries.len() }
