package pipeline

import (
	"context"
	"errors"
	"sync"

	"sinkflow/internal/event"
	"sinkflow/internal/logging"
	"sinkflow/sink"
	"sinkflow/source/kafka"
)

type Runner struct {
	source kafka.Adapter
	sink   sink.Adapter

	mu    sync.Mutex
	stops []func()
	done  chan struct{}
}

func NewRunner() *Runner { return &Runner{} }

func (r *Runner) SetSink(s sink.Adapter)    { r.sink = s }
func (r *Runner) SetSource(s kafka.Adapter) { r.source = s }

// OnClose registers fn to run first during Close (config watchers).
func (r *Runner) OnClose(fn func()) {
	r.mu.Lock()
	r.stops = append(r.stops, fn)
	r.mu.Unlock()
}

/*──────── event routing ───────*/

func (r *Runner) pushEvent(ctx context.Context, ev event.ProfileEvent) error {
	return r.sink.Push(ctx, ev)
}

func (r *Runner) Start(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	if r.sink == nil {
		return errors.New("runner: no sink configured")
	}
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		if err := r.source.Run(ctx, r.pushEvent); err != nil && !errors.Is(err, context.Canceled) {
			logging.L().Error("runner: source stopped", "err", err)
		}
	}()
	return nil
}

// Close stops watchers, then the source, then drains the sink within ctx.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	stops := r.stops
	r.stops = nil
	r.mu.Unlock()
	for _, stop := range stops {
		stop()
	}

	var errs []error
	if r.source != nil {
		if err := r.source.Close(); err != nil {
			errs = append(errs, err)
		}
		if r.done != nil {
			select {
			case <-r.done:
			case <-ctx.Done():
			}
		}
	}
	if r.sink != nil {
		if err := r.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
