package httpsink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"sinkflow/internal/deadletter"
	"sinkflow/internal/event"
	"sinkflow/internal/logging"
	"sinkflow/internal/slot"
	"sinkflow/internal/telemetry"
)

// Doer is the asynchronous transport's unit of work; *http.Client fits.
// Request timeouts belong to the Doer.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// DispatchRequest is one send attempt. A retried event gets a new one.
type DispatchRequest struct {
	Request *http.Request
	Event   event.ProfileEvent
	SentAt  time.Time
	Attempt int
	Task    string // task name of the snapshot the request was built from

	token *slot.Token
}

type completion struct {
	req    *DispatchRequest
	status int
	err    error
}

type DispatcherOptions struct {
	Client  Doer
	Workers int // completion workers; default 4
	// RequeueOnCancel routes cancelled sends through the failure path
	// instead of only logging them.
	RequeueOnCancel bool
	DeadLetter      deadletter.Publisher
}

// Dispatcher moves events through Built -> Sent -> {Acked, Requeued}.
// Dispatch is the producer side; completions are finalized on worker
// goroutines and requeued events are re-dispatched by a scheduler.
type Dispatcher struct {
	sc       *Context
	client   Doer
	workers  int
	onCancel bool
	dlq      deadletter.Publisher
	log      *slog.Logger

	done chan completion

	life     context.Context // cancelled by Close: stops scheduler and producers
	stop     context.CancelFunc
	sendCtx  context.Context // cancelled only when Close gives up waiting
	sendStop context.CancelFunc

	mu      sync.RWMutex
	closed  bool
	sends   sync.WaitGroup
	loops   sync.WaitGroup
	started bool
}

func NewDispatcher(sc *Context, opts DispatcherOptions) *Dispatcher {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DeadLetter == nil {
		opts.DeadLetter = deadletter.Nop{}
	}
	d := &Dispatcher{
		sc:       sc,
		client:   opts.Client,
		workers:  opts.Workers,
		onCancel: opts.RequeueOnCancel,
		dlq:      opts.DeadLetter,
		log:      logging.With("httpsink"),
		// never more completions outstanding than slots
		done: make(chan completion, sc.slots.Cap()),
	}
	d.life, d.stop = context.WithCancel(context.Background())
	d.sendCtx, d.sendStop = context.WithCancel(context.Background())
	return d
}

// Start launches the completion workers and the retry scheduler.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.loops.Add(1)
		go func() {
			defer d.loops.Done()
			for c := range d.done {
				d.complete(c)
			}
		}()
	}
	d.loops.Add(1)
	go func() {
		defer d.loops.Done()
		d.schedule()
	}()
}

// Dispatch runs one first attempt for ev. It blocks only while every slot
// is taken. The returned error is non-nil only when ctx ends or the
// dispatcher is closed; delivery outcomes are reported through the
// recorder and the event's ack.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.ProfileEvent) error {
	return d.dispatch(ctx, ev, 1)
}

func (d *Dispatcher) dispatch(ctx context.Context, ev event.ProfileEvent, attempt int) error {
	snap := d.sc.Snapshot()
	settings := snap.Settings()

	route, ok := snap.Route(ev.StreamID())
	if !ok {
		d.sc.RecordOutcome(ev, settings.TaskName, false, time.Now())
		d.drop(ev, settings.TaskName, &BuildError{Stream: ev.StreamID(), Err: ErrRouteAbsent})
		return nil
	}

	fields := Extract(ev.Body(), route.Separator, route.Fields, settings.KeywordMaxLength)
	req, err := Build(ev.StreamID(), fields, route, settings)
	if err != nil {
		d.sc.RecordOutcome(ev, settings.TaskName, false, time.Now())
		d.drop(ev, settings.TaskName, err)
		return nil
	}

	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	unhook := context.AfterFunc(d.life, cancel)
	defer unhook()

	tok, err := d.sc.AcquireSlot(actx)
	if err != nil {
		if d.life.Err() != nil {
			return ErrClosed
		}
		return err
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.sc.Release(tok)
		return ErrClosed
	}
	d.sends.Add(1)
	d.mu.RUnlock()

	dr := &DispatchRequest{
		Request: req.WithContext(d.sendCtx),
		Event:   ev,
		SentAt:  time.Now(),
		Attempt: attempt,
		Task:    settings.TaskName,
		token:   tok,
	}
	telemetry.InFlight.WithLabelValues(dr.Task).Inc()
	go d.send(dr)
	return nil
}

func (d *Dispatcher) send(dr *DispatchRequest) {
	defer d.sends.Done()
	c := completion{req: dr}
	resp, err := d.client.Do(dr.Request)
	if err != nil {
		c.err = err
	} else {
		c.status = resp.StatusCode
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}
	d.done <- c
}

func (d *Dispatcher) complete(c completion) {
	dr := c.req
	task := dr.Task
	// every branch gives the slot back
	defer telemetry.InFlight.WithLabelValues(task).Dec()

	switch {
	case c.err == nil && c.status == http.StatusOK:
		d.sc.RecordOutcome(dr.Event, task, true, dr.SentAt)
		d.sc.Release(dr.token)
		dr.Event.Ack()

	case c.err == nil:
		d.log.Debug("http send rejected", "stream", dr.Event.StreamID(), "status", c.status, "attempt", dr.Attempt)
		d.sc.RecordOutcome(dr.Event, task, false, dr.SentAt)
		d.requeue(dr, task)

	case d.cancelled(c.err):
		d.log.Info("http send cancelled", "stream", dr.Event.StreamID(), "attempt", dr.Attempt)
		telemetry.Cancelled.WithLabelValues(task).Inc()
		if d.onCancel {
			d.sc.RecordOutcome(dr.Event, task, false, dr.SentAt)
			d.requeue(dr, task)
			return
		}
		// left unacked; the source redelivers it
		d.sc.Release(dr.token)

	default:
		d.log.Error("http send failed", "stream", dr.Event.StreamID(), "attempt", dr.Attempt, "err", c.err)
		d.sc.RecordOutcome(dr.Event, task, false, dr.SentAt)
		d.requeue(dr, task)
	}
}

// cancelled separates our own shutdown from transport timeouts, which
// surface as DeadlineExceeded or a timeout url.Error and are retried.
func (d *Dispatcher) cancelled(err error) bool {
	return errors.Is(err, context.Canceled) && d.sendCtx.Err() != nil
}

func (d *Dispatcher) requeue(dr *DispatchRequest, task string) {
	telemetry.Requeued.WithLabelValues(task).Inc()
	d.sc.ReturnAndRetry(dr.token, dr)
}

func (d *Dispatcher) drop(ev event.ProfileEvent, task string, err error) {
	reason := dropReason(err)
	telemetry.Dropped.WithLabelValues(task, reason).Inc()
	if errors.Is(err, ErrRouteAbsent) {
		d.log.Warn("dropping event without route", "stream", ev.StreamID())
	} else {
		d.log.Error("dropping event", "stream", ev.StreamID(), "reason", reason, "err", err)
	}
	if perr := d.dlq.Publish(d.life, ev, reason, err); perr != nil {
		d.log.Error("dead-letter publish failed", "stream", ev.StreamID(), "err", perr)
	}
	// terminal: let the source move past it without counting a delivery
	if s, ok := ev.(event.Settler); ok {
		s.Settle()
	}
}

func (d *Dispatcher) schedule() {
	q := d.sc.retries
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		it, ok, wait := q.popDue(time.Now())
		if ok {
			if err := d.dispatch(d.life, it.ev, it.attempt); err != nil {
				// closing: put it back so Close can report it
				q.push(it)
				return
			}
			continue
		}

		var tc <-chan time.Time
		if wait >= 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(wait)
			tc = timer.C
		}
		select {
		case <-d.life.Done():
			return
		case <-q.signal:
		case <-tc:
		}
	}
}

// Close stops intake, waits for in-flight sends until ctx ends, then
// cancels whatever is left. Requeued events that never got another
// attempt stay unacked.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()
	d.stop()

	idle := make(chan struct{})
	go func() {
		d.sends.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		d.sendStop()
		<-idle
	}
	if !started {
		// nobody will drain completions; finalize inline
		for len(d.done) > 0 {
			d.complete(<-d.done)
		}
	}
	close(d.done)
	d.loops.Wait()
	d.sendStop()

	if n := d.sc.Pending(); n > 0 {
		d.log.Warn("closing with requeued events left unacked", "count", n)
	}
	return d.dlq.Close()
}
