// Package event defines the unit that flows from an upstream channel into
// the sinks: a raw payload tagged with its stream identifier, plus the
// capability to acknowledge durable delivery back to the source.
package event

import (
	"sync"
	"time"
)

// ProfileEvent is consumed, never owned, by a sink. Ack must be safe to
// call more than once; only the first call has an effect.
type ProfileEvent interface {
	StreamID() string
	Body() []byte
	Ack()
}

// Settler is implemented by events whose source must learn that a sink
// gave up on them. Settle ends the event without confirming delivery; once
// either Ack or Settle ran, the other is a no-op.
type Settler interface {
	Settle()
}

// Event is the concrete ProfileEvent produced by the bundled sources.
type Event struct {
	stream   string
	body     []byte
	received time.Time

	once     sync.Once
	ackFn    func()
	settleFn func()
}

// New wraps a payload. ackFn may be nil for sources without acknowledgement.
func New(stream string, body []byte, ackFn func()) *Event {
	return &Event{stream: stream, body: body, received: time.Now(), ackFn: ackFn}
}

// OnSettle sets the callback run by Settle.
func (e *Event) OnSettle(fn func()) *Event {
	e.settleFn = fn
	return e
}

func (e *Event) StreamID() string    { return e.stream }
func (e *Event) Body() []byte        { return e.body }
func (e *Event) Received() time.Time { return e.received }

func (e *Event) Ack() {
	e.once.Do(func() {
		if e.ackFn != nil {
			e.ackFn()
		}
	})
}

func (e *Event) Settle() {
	e.once.Do(func() {
		if e.settleFn != nil {
			e.settleFn()
		}
	})
}
