package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"sinkflow/internal/event"
)

func TestRecorder_CountsByResult(t *testing.T) {
	ev := event.New("metrics.test", nil, nil)
	r := Recorder{}

	r.RecordOutcome(ev, "task-a", true, time.Now())
	r.RecordOutcome(ev, "task-a", false, time.Now())
	r.RecordOutcome(ev, "task-a", false, time.Now())

	if got := testutil.ToFloat64(SendResults.WithLabelValues("task-a", "metrics.test", "success")); got != 1 {
		t.Fatalf("success=%v want=1", got)
	}
	if got := testutil.ToFloat64(SendResults.WithLabelValues("task-a", "metrics.test", "failure")); got != 2 {
		t.Fatalf("failure=%v want=2", got)
	}
}
