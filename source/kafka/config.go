package kafka

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SINKFLOW_KAFKA__"

type CommitMode string

const (
	CommitAuto CommitMode = "auto" // mark as soon as the sink accepted the event
	CommitE2E  CommitMode = "e2e"  // mark only after the sink acked delivery
)

type BackPressureCfg struct {
	Capacity int `koanf:"capacity"` // max unacked records per partition
}

type CheckpointCfg struct {
	CommitInt time.Duration `koanf:"commit_interval"` // offset flush cadence
}

type Config struct {
	Brokers      []string `koanf:"brokers"`
	Topics       []string `koanf:"topics"`
	GroupID      string   `koanf:"group_id"`
	StartFrom    string   `koanf:"start_from"` // oldest|newest (default newest)
	Version      string   `koanf:"version"`
	TLSEn        bool     `koanf:"tls_enabled"`
	SASLUser     string   `koanf:"sasl_user"`
	SASLPass     string   `koanf:"sasl_pass"`
	StreamHeader string   `koanf:"stream_header"` // record header carrying the stream id

	CommitMode   CommitMode      `koanf:"commit_mode"` // auto|e2e
	BackPressure BackPressureCfg `koanf:"backpressure"`
	Checkpoint   CheckpointCfg   `koanf:"checkpoint"`
}

// ---------------------------------------------------------------------------
// Loader
// ---------------------------------------------------------------------------

// LoadConfig merges YAML (if present) with env-vars
// (prefix `SINKFLOW_KAFKA__`, delimiter `__`).
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	sv := k.String("schema_version")
	if sv != "" && sv != "v1" {
		return Config{}, fmt.Errorf("kafka schema_version %q not supported (want v1)", sv)
	}

	if err := k.Load(env.Provider(envPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// ---------------------------------------------------------------------------
// defaults
// ---------------------------------------------------------------------------

func applyDefaults(c *Config) {
	if c.BackPressure.Capacity <= 0 {
		c.BackPressure.Capacity = 30_000
	}
	if c.Checkpoint.CommitInt == 0 {
		c.Checkpoint.CommitInt = 5 * time.Second
	}
	if c.CommitMode != CommitAuto && c.CommitMode != CommitE2E {
		c.CommitMode = CommitE2E
	}
	if c.StartFrom == "" {
		c.StartFrom = "newest"
	}
	if c.StreamHeader == "" {
		c.StreamHeader = "stream_id"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
}
