package event

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestEvent_AckIsIdempotent(t *testing.T) {
	var calls int32
	ev := New("g.s", []byte("a|b"), func() { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.Ack()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("ack calls=%d want=1", calls)
	}
}

func TestEvent_NilAckFn(t *testing.T) {
	ev := New("g.s", nil, nil)
	ev.Ack()
	if ev.StreamID() != "g.s" {
		t.Fatalf("stream=%q", ev.StreamID())
	}
}

func TestEvent_SettleExcludesAck(t *testing.T) {
	var acks, settles int32
	ev := New("g.s", nil, func() { atomic.AddInt32(&acks, 1) }).
		OnSettle(func() { atomic.AddInt32(&settles, 1) })

	ev.Settle()
	ev.Ack()
	ev.Settle()
	if acks != 0 || settles != 1 {
		t.Fatalf("acks=%d settles=%d want 0/1", acks, settles)
	}

	acked := New("g.s", nil, func() { atomic.AddInt32(&acks, 1) }).
		OnSettle(func() { atomic.AddInt32(&settles, 1) })
	acked.Ack()
	acked.Settle()
	if acks != 1 || settles != 1 {
		t.Fatalf("acks=%d settles=%d want 1/1", acks, settles)
	}
}
