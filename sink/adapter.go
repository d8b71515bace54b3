package sink

import (
	"context"
	"fmt"
	"sync"

	"sinkflow/internal/deadletter"
	"sinkflow/internal/event"
)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error // driver-specific config struct
	// Push hands one event to the sink. It may block for backpressure but
	// reports delivery through the event's Ack, not through the error.
	Push(context.Context, event.ProfileEvent) error
	Close(context.Context) error // idempotent
}

// Reloadable sinks accept a fresh config while running.
type Reloadable interface {
	Reload(any) error
}

// DeadLetterAware sinks publish the events they drop. The compiler binds
// the publisher before Configure.
type DeadLetterAware interface {
	BindDeadLetter(deadletter.Publisher)
}

/*──────── registry ───────*/

type factory = func() Adapter

var (
	mu  sync.RWMutex
	reg = map[string]factory{}
)

func Register(name string, f factory) {
	mu.Lock()
	reg[name] = f
	mu.Unlock()
}

func NewAdapter(name string) (Adapter, error) {
	mu.RLock()
	f, ok := reg[name]
	mu.RUnlock()
	if ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
