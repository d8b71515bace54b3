package httpsink

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

const envPrefix = "SINKFLOW_HTTP__"

type RouteSpec struct {
	StreamID   string            `koanf:"stream_id"`
	Path       string            `koanf:"path"`
	Method     string            `koanf:"method"` // GET|POST|PUT, default POST
	Headers    map[string]string `koanf:"headers"`
	Separator  string            `koanf:"separator"` // one character, default "|"
	Fields     []string          `koanf:"fields"`
	DataFormat string            `koanf:"data_format"`
}

type RetryCfg struct {
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
	Jitter    bool          `koanf:"jitter"`
}

type Config struct {
	Domain           string `koanf:"domain"` // scheme://host
	Port             int    `koanf:"port"`
	MaxConnect       int64  `koanf:"max_connect"` // slot capacity
	MaxThreads       int    `koanf:"max_threads"` // completion workers
	KeywordMaxLength int    `koanf:"keyword_max_length"`
	EnableToken      bool   `koanf:"enable_token"`
	Token            string `koanf:"token"`
	EnableCredential bool   `koanf:"enable_credential"`
	Username         string `koanf:"username"`
	Password         string `koanf:"password"`
	TaskName         string `koanf:"task_name"`

	RequestTimeout  time.Duration `koanf:"request_timeout"`
	RequeueOnCancel bool          `koanf:"requeue_on_cancel"`
	Retry           RetryCfg      `koanf:"retry"`

	Routes []RouteSpec `koanf:"routes"`
}

// LoadConfig merges YAML (if present) with env-vars
// (prefix `SINKFLOW_HTTP__`, delimiter `__`).
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
		return Config{}, fmt.Errorf("http sink schema_version %q not supported (want v1)", sv)
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

func applyDefaults(c *Config) {
	if c.MaxConnect <= 0 {
		c.MaxConnect = 10
	}
	if c.MaxThreads <= 0 {
		c.MaxThreads = 4
	}
	if c.KeywordMaxLength == 0 {
		c.KeywordMaxLength = 8 * 1024
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = 100 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}
	if c.TaskName == "" {
		c.TaskName = "http"
	}
}

// Snapshot validates the routes and freezes them with the settings.
func (c Config) Snapshot() (*Snapshot, error) {
	routes := make([]RouteConfig, 0, len(c.Routes))
	seen := make(map[string]bool, len(c.Routes))
	for _, rs := range c.Routes {
		r, err := NewRouteConfig(rs)
		if err != nil {
			return nil, err
		}
		if seen[r.Stream] {
			return nil, fmt.Errorf("httpsink: duplicate route for stream %s", r.Stream)
		}
		seen[r.Stream] = true
		routes = append(routes, r)
	}
	return NewSnapshot(c.Settings(), routes), nil
}

func (c Config) Settings() Settings {
	return Settings{
		Domain:           strings.TrimRight(c.Domain, "/"),
		Port:             c.Port,
		KeywordMaxLength: c.KeywordMaxLength,
		EnableToken:      c.EnableToken,
		Token:            c.Token,
		EnableCredential: c.EnableCredential,
		Username:         c.Username,
		Password:         c.Password,
		TaskName:         c.TaskName,
	}
}

func (c Config) Backoff() Backoff {
	return Backoff{BaseDelay: c.Retry.BaseDelay, MaxDelay: c.Retry.MaxDelay, Jitter: c.Retry.Jitter}
}

// Watch reloads path whenever it changes and passes the result to apply.
// Reload errors are handed to onErr and the previous config stays live.
func Watch(path string, apply func(Config), onErr func(error)) (stop func(), err error) {
	fp := file.Provider(path)
	err = fp.Watch(func(_ interface{}, werr error) {
		if werr != nil {
			onErr(werr)
			return
		}
		cfg, lerr := LoadConfig(path)
		if lerr != nil {
			onErr(lerr)
			return
		}
		apply(cfg)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = fp.Unwatch() }, nil
}
