package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sinkflow/internal/event"
	"sinkflow/source/kafka"
)

type fakeSource struct {
	events []event.ProfileEvent
	closed int32
}

func (f *fakeSource) Configure(kafka.Config) error { return nil }
func (f *fakeSource) Run(ctx context.Context, emit kafka.EmitFunc) error {
	for _, ev := range f.events {
		if err := emit(ctx, ev); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}
func (f *fakeSource) Close() error { atomic.StoreInt32(&f.closed, 1); return nil }

type captureSink struct {
	mu     sync.Mutex
	pushed []event.ProfileEvent
	ack    bool
	closed bool
}

func (c *captureSink) Configure(any) error { return nil }
func (c *captureSink) Push(_ context.Context, ev event.ProfileEvent) error {
	c.mu.Lock()
	c.pushed = append(c.pushed, ev)
	c.mu.Unlock()
	if c.ack {
		ev.Ack()
	}
	return nil
}
func (c *captureSink) Close(context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pushed)
}

func TestRunner_SingleSinkPassesEventThrough(t *testing.T) {
	r := NewRunner()
	cs := &captureSink{ack: true}
	r.SetSink(cs)

	var acks int32
	ev := event.New("s", []byte("hello"), func() { atomic.AddInt32(&acks, 1) })
	if err := r.pushEvent(context.Background(), ev); err != nil {
		t.Fatalf("pushEvent: %v", err)
	}
	if cs.count() != 1 || string(cs.pushed[0].Body()) != "hello" {
		t.Fatalf("unexpected push %+v", cs.pushed)
	}
	if atomic.LoadInt32(&acks) != 1 {
		t.Fatalf("acks=%d want=1", acks)
	}
}

func TestRunner_StartRequiresSourceAndSink(t *testing.T) {
	r := NewRunner()
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error without source")
	}
	r.SetSource(&fakeSource{})
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error without sink")
	}
}

func TestRunner_RunAndClose(t *testing.T) {
	src := &fakeSource{events: []event.ProfileEvent{
		event.New("a", []byte("1"), nil),
		event.New("b", []byte("2"), nil),
	}}
	cs := &captureSink{}
	r := NewRunner()
	r.SetSource(src)
	r.SetSink(cs)
	var stopped int32
	r.OnClose(func() { atomic.StoreInt32(&stopped, 1) })

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for cs.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("pushed=%d want=2", cs.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	closeCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	if err := r.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if atomic.LoadInt32(&src.closed) != 1 || !cs.closed || atomic.LoadInt32(&stopped) != 1 {
		t.Fatal("Close did not reach source, sink and watchers")
	}
}

func TestCompile_RejectsUnknownKinds(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pipeline.yml")
	if err := os.WriteFile(p, []byte("sink: { kind: stdout }\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Compile(p); err == nil {
		t.Fatal("expected unsupported sink error")
	}
	if _, err := Compile(filepath.Join(dir, "missing.yml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
}

func TestCompile_RejectsUnknownSource(t *testing.T) {
	dir := t.TempDir()
	sinkCfg := filepath.Join(dir, "http.yml")
	if err := os.WriteFile(sinkCfg, []byte("domain: http://localhost:1\nroutes:\n  - stream_id: s\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p := filepath.Join(dir, "pipeline.yml")
	body := "source: { kind: pulsar }\nsink: { kind: http, config: http.yml }\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Compile(p); err == nil {
		t.Fatal("expected unsupported source error")
	}
}
