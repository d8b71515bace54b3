package kafka

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWindow_WatermarkSkipsNoGaps(t *testing.T) {
	w := newWindow[int](10)
	ctx := context.Background()
	r1, _ := w.add(ctx, 1)
	r2, _ := w.add(ctx, 2)
	r3, _ := w.add(ctx, 3)

	if _, adv := r2(); adv {
		t.Fatal("resolving 2 before 1 advanced the watermark")
	}
	if _, adv := r3(); adv {
		t.Fatal("resolving 3 before 1 advanced the watermark")
	}
	mark, adv := r1()
	if !adv || mark != 3 {
		t.Fatalf("watermark=%d advanced=%v, want 3/true", mark, adv)
	}
	if w.pending() != 0 {
		t.Fatalf("pending=%d want=0", w.pending())
	}
}

func TestWindow_InOrder(t *testing.T) {
	w := newWindow[int](10)
	ctx := context.Background()
	r1, _ := w.add(ctx, 1)
	r2, _ := w.add(ctx, 2)

	if m, adv := r1(); !adv || m != 1 {
		t.Fatalf("after 1: %d/%v", m, adv)
	}
	if m, adv := r2(); !adv || m != 2 {
		t.Fatalf("after 2: %d/%v", m, adv)
	}
	if m, ok := w.watermark(); !ok || m != 2 {
		t.Fatalf("watermark=%d/%v", m, ok)
	}
}

func TestWindow_ResolveIsIdempotent(t *testing.T) {
	w := newWindow[int](10)
	r1, _ := w.add(context.Background(), 1)
	_, _ = w.add(context.Background(), 2)
	r1()
	r1()
	if w.pending() != 1 {
		t.Fatalf("pending=%d want=1", w.pending())
	}
}

func TestWindow_BlocksAtLimit(t *testing.T) {
	w := newWindow[int](1)
	r1, _ := w.add(context.Background(), 1)

	added := make(chan struct{})
	go func() {
		_, _ = w.add(context.Background(), 2)
		close(added)
	}()

	select {
	case <-added:
		t.Fatal("add returned while window full")
	case <-time.After(20 * time.Millisecond):
	}
	r1()
	select {
	case <-added:
	case <-time.After(time.Second):
		t.Fatal("add did not unblock after resolve")
	}
}

func TestWindow_AddHonoursContext(t *testing.T) {
	w := newWindow[int](1)
	_, _ = w.add(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := w.add(ctx, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}
