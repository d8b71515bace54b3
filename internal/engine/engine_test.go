package engine

import (
	"context"
	"testing"
	"time"
)

func TestEngine_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, err := Bootstrap(ctx, Config{DrainTimeout: time.Second})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBootstrap_BadPipeline(t *testing.T) {
	_, err := Bootstrap(context.Background(), Config{PipelineYml: "/nonexistent/pipeline.yml"})
	if err == nil {
		t.Fatal("expected pipeline error")
	}
}
