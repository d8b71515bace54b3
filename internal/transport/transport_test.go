package transport

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

func TestProbe_FollowsServingStatus(t *testing.T) {
	s, err := StartServer(0)
	if err != nil {
		t.Fatalf("StartServer: %v", err)
	}
	go func() { _ = s.Serve() }()
	defer s.Stop()

	addr := fmt.Sprintf("127.0.0.1:%d", s.Addr().(*net.TCPAddr).Port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Probe(ctx, addr); err == nil {
		t.Fatal("probe succeeded before the pipeline was marked serving")
	}
	s.SetServing(true)
	if err := Probe(ctx, addr); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	s.SetServing(false)
	if err := Probe(ctx, addr); err == nil {
		t.Fatal("probe succeeded after the pipeline stopped serving")
	}
}
