package spec

import "sinkflow/internal/deadletter"

type SourceSpec struct {
	Kind   string `yaml:"kind"`   // kafka
	Driver string `yaml:"driver"` // sarama
	Config string `yaml:"config"` // path to the driver's koanf YAML
}

type SinkSpec struct {
	Kind   string `yaml:"kind"`   // http
	Config string `yaml:"config"` // path to the sink's koanf YAML
	// Watch re-reads Config on change and publishes the new routes.
	Watch bool `yaml:"watch"`
}

type DeadLetterSpec struct {
	Enabled           bool `yaml:"enabled"`
	deadletter.Config `yaml:",inline"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source     SourceSpec     `yaml:"source"`
	Sink       SinkSpec       `yaml:"sink"`
	DeadLetter DeadLetterSpec `yaml:"dead_letter"`
}
