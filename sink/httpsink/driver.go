package httpsink

import (
	"context"
	"fmt"
	"net/http"

	"sinkflow/internal/deadletter"
	"sinkflow/internal/event"
	"sinkflow/internal/logging"
	"sinkflow/internal/slot"
	"sinkflow/internal/telemetry"
	"sinkflow/sink"
)

// driver adapts the dispatcher to sink.Adapter.
type driver struct {
	cfg      Config
	sc       *Context
	disp     *Dispatcher
	dlq      deadletter.Publisher
	client   Doer
	recorder Recorder
}

func (d *driver) BindDeadLetter(p deadletter.Publisher) { d.dlq = p }

func (d *driver) Configure(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("http-sink: expected Config, got %T", raw)
	}
	if d.disp != nil {
		return fmt.Errorf("http-sink: already configured")
	}
	snap, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	pool, err := slot.NewPool(cfg.MaxConnect)
	if err != nil {
		return err
	}
	if d.client == nil {
		d.client = &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: int(cfg.MaxConnect)},
		}
	}
	if d.recorder == nil {
		d.recorder = telemetry.Recorder{}
	}
	d.cfg = cfg
	d.sc = NewContext(snap, pool, d.recorder, cfg.Backoff())
	d.disp = NewDispatcher(d.sc, DispatcherOptions{
		Client:          d.client,
		Workers:         cfg.MaxThreads,
		RequeueOnCancel: cfg.RequeueOnCancel,
		DeadLetter:      d.dlq,
	})
	d.disp.Start()
	logging.L().Info("http sink configured", "task", cfg.TaskName, "routes", snap.Len(), "slots", cfg.MaxConnect)
	return nil
}

// Reload publishes new routes and settings. Slot capacity and worker
// count are fixed for the life of the sink.
func (d *driver) Reload(raw any) error {
	cfg, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("http-sink: expected Config, got %T", raw)
	}
	if d.sc == nil {
		return fmt.Errorf("http-sink: not configured")
	}
	snap, err := cfg.Snapshot()
	if err != nil {
		return err
	}
	if cfg.MaxConnect != d.cfg.MaxConnect {
		logging.L().Warn("http sink: max_connect change needs a restart", "current", d.cfg.MaxConnect, "requested", cfg.MaxConnect)
	}
	d.sc.Publish(snap)
	logging.L().Info("http sink routes reloaded", "task", cfg.TaskName, "routes", snap.Len())
	return nil
}

func (d *driver) Push(ctx context.Context, ev event.ProfileEvent) error {
	if d.disp == nil {
		return fmt.Errorf("http-sink: not configured")
	}
	return d.disp.Dispatch(ctx, ev)
}

func (d *driver) Close(ctx context.Context) error {
	if d.disp == nil {
		return nil
	}
	return d.disp.Close(ctx)
}

func init() {
	sink.Register("http", func() sink.Adapter { return &driver{} })
}
