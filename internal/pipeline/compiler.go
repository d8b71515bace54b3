package pipeline

import (
	"context"
	"fmt"

	"sinkflow/internal/config"
	"sinkflow/internal/deadletter"
	"sinkflow/internal/logging"
	"sinkflow/internal/spec"
	"sinkflow/sink"
	"sinkflow/sink/httpsink"
	"sinkflow/source/kafka"
)

func Compile(path string) (*Runner, error) {
	r := NewRunner()
	if err := LoadYAML(path, r); err != nil {
		_ = r.Close(context.Background())
		return nil, err
	}
	return r, nil
}

func LoadYAML(path string, r *Runner) error {
	cfg, err := config.LoadPipelineSpec(path)
	if err != nil {
		return err
	}

	/*──────── sink ───────*/
	sDrv, err := compileSink(cfg, r)
	if err != nil {
		return err
	}
	r.SetSink(sDrv)

	/*──────── source ───────*/
	if cfg.Source.Kind != "kafka" {
		return fmt.Errorf("unsupported source %q", cfg.Source.Kind)
	}
	kc, err := config.LoadKafkaConfig(cfg.Source.Config)
	if err != nil {
		return err
	}
	src, err := kafka.NewAdapter(cfg.Source.Driver)
	if err != nil {
		return err
	}
	if err = src.Configure(kc); err != nil {
		return err
	}
	r.SetSource(src)
	return nil
}

func compileSink(cfg spec.File, r *Runner) (sink.Adapter, error) {
	if cfg.Sink.Kind != "http" {
		return nil, fmt.Errorf("unsupported sink %q", cfg.Sink.Kind)
	}
	hc, err := config.LoadHTTPSinkConfig(cfg.Sink.Config)
	if err != nil {
		return nil, err
	}
	sDrv, err := sink.NewAdapter(cfg.Sink.Kind)
	if err != nil {
		return nil, err
	}

	if dla, ok := sDrv.(sink.DeadLetterAware); ok {
		dlq, err := openDeadLetter(cfg.DeadLetter)
		if err != nil {
			return nil, err
		}
		dla.BindDeadLetter(dlq)
	}
	if err := sDrv.Configure(hc); err != nil {
		return nil, err
	}

	if rl, ok := sDrv.(sink.Reloadable); ok && cfg.Sink.Watch && cfg.Sink.Config != "" {
		log := logging.With("config-watch")
		stop, err := httpsink.Watch(cfg.Sink.Config, func(next httpsink.Config) {
			if err := rl.Reload(next); err != nil {
				log.Error("reload rejected", "path", cfg.Sink.Config, "err", err)
			}
		}, func(err error) {
			log.Error("reload failed", "path", cfg.Sink.Config, "err", err)
		})
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", cfg.Sink.Config, err)
		}
		r.OnClose(stop)
	}
	return sDrv, nil
}

func openDeadLetter(ds spec.DeadLetterSpec) (deadletter.Publisher, error) {
	if !ds.Enabled {
		return deadletter.Nop{}, nil
	}
	p, err := deadletter.NewKafkaPublisher(ds.Config)
	if err != nil {
		return nil, fmt.Errorf("dead letter: %w", err)
	}
	return p, nil
}
