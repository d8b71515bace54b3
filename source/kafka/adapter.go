package kafka

import (
	"context"

	"sinkflow/internal/event"
)

// EmitFunc hands one event to the sinks. It may block for backpressure.
type EmitFunc func(context.Context, event.ProfileEvent) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}
