package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sinkflow/internal/engine"
	"sinkflow/internal/logging"
	"sinkflow/internal/transport"

	_ "sinkflow/sink/httpsink"
	_ "sinkflow/source/kafka"
)

func main() {
	var (
		grpcPort    = flag.Int("grpc-port", 7070, "health service port")
		metricsPort = flag.Int("metrics-port", 9100, "prometheus /metrics port")
		pipelineYml = flag.String("pipeline", "pipeline.yml", "pipeline spec")
		drain       = flag.Duration("drain", 30*time.Second, "in-flight grace period on shutdown")
		probe       = flag.Bool("probe", false, "check a running instance's health and exit")
	)
	flag.Parse()
	logging.InitFromEnv()

	if *probe {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := transport.Probe(ctx, fmt.Sprintf("localhost:%d", *grpcPort)); err != nil {
			fmt.Fprintln(os.Stderr, "unhealthy:", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(ctx, engine.Config{
		GRPCPort:     *grpcPort,
		MetricsPort:  *metricsPort,
		PipelineYml:  *pipelineYml,
		DrainTimeout: *drain,
	})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := e.Run(ctx); err != nil {
		log.Fatalf("engine: %v", err)
	}
}
