package engine

import (
	"context"
	"net/http"

	"sinkflow/internal/logging"
	"sinkflow/internal/pipeline"
	"sinkflow/internal/telemetry"
	"sinkflow/internal/transport"
)

type Engine struct {
	cfg       Config
	transport *transport.Server
	runner    *pipeline.Runner
	metrics   *http.Server
}

// Run serves until ctx is cancelled, then drains the pipeline within
// cfg.DrainTimeout before stopping the listeners.
func (e *Engine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.transport.SetServing(false)

		drainCtx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
		defer cancel()
		if e.runner != nil {
			if err := e.runner.Close(drainCtx); err != nil {
				logging.L().Error("engine: pipeline close", "err", err)
			}
		}
		telemetry.Shutdown(drainCtx, e.metrics)
		e.transport.Stop()
	}()

	return e.transport.Serve()
}
