package engine

import (
	"context"
	"fmt"
	"time"

	"sinkflow/internal/pipeline"
	"sinkflow/internal/telemetry"
	"sinkflow/internal/transport"
)

type Config struct {
	GRPCPort     int
	MetricsPort  int
	PipelineYml  string
	DrainTimeout time.Duration // in-flight grace period on shutdown
}

func Bootstrap(ctx context.Context, cfg Config) (*Engine, error) {
	// 1. transport server
	srv, err := transport.StartServer(cfg.GRPCPort)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	// 2. pipeline runner
	var runner *pipeline.Runner
	if cfg.PipelineYml != "" {
		runner, err = pipeline.Compile(cfg.PipelineYml)
		if err != nil {
			srv.Stop()
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if err := runner.Start(ctx); err != nil {
			srv.Stop()
			return nil, err
		}
		srv.SetServing(true)
	}

	// 3. metrics
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	return &Engine{
		cfg:       cfg,
		transport: srv,
		runner:    runner,
		metrics:   telemetry.Expose(cfg.MetricsPort),
	}, nil
}
