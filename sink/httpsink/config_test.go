package httpsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sinkYAML = `schema_version: v1
domain: http://collector.local
port: 8080
max_connect: 5
enable_token: true
token: from-file
task_name: sort-http
retry:
  base_delay: 50ms
routes:
  - stream_id: grp.stream
    path: /events
    method: put
    separator: ","
    fields: [id, name]
    headers:
      X-Source: sinkflow
  - stream_id: grp.other
    path: /other
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadConfig_FileEnvAndDefaults(t *testing.T) {
	p := writeFile(t, t.TempDir(), "http_sink.yml", sinkYAML)
	t.Setenv("SINKFLOW_HTTP__TOKEN", "from-env")
	t.Setenv("SINKFLOW_HTTP__RETRY__MAX_DELAY", "2s")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Token != "from-env" {
		t.Fatalf("token=%q want env override", cfg.Token)
	}
	if cfg.Retry.BaseDelay != 50*time.Millisecond || cfg.Retry.MaxDelay != 2*time.Second {
		t.Fatalf("retry=%+v", cfg.Retry)
	}
	if cfg.MaxConnect != 5 || cfg.MaxThreads != 4 || cfg.KeywordMaxLength != 8*1024 {
		t.Fatalf("unexpected sizing %+v", cfg)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("request_timeout=%v", cfg.RequestTimeout)
	}

	snap, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	r, ok := snap.Route("grp.stream")
	if !ok {
		t.Fatal("grp.stream missing")
	}
	if r.Method != MethodPut || r.Separator != ',' || len(r.Fields) != 2 || r.Headers["X-Source"] != "sinkflow" {
		t.Fatalf("unexpected route %+v", r)
	}
	if other, _ := snap.Route("grp.other"); other.Method != MethodPost || other.Separator != '|' {
		t.Fatalf("defaults not applied: %+v", other)
	}
	if s := snap.Settings(); s.Domain != "http://collector.local" || s.Port != 8080 || !s.EnableToken {
		t.Fatalf("settings=%+v", s)
	}
}

func TestLoadConfig_RejectsSchemaVersion(t *testing.T) {
	p := writeFile(t, t.TempDir(), "http_sink.yml", "schema_version: v2\n")
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected schema_version error")
	}
}

func TestConfigSnapshot_DuplicateStream(t *testing.T) {
	cfg := Config{Routes: []RouteSpec{{StreamID: "a"}, {StreamID: "a"}}}
	if _, err := cfg.Snapshot(); err == nil {
		t.Fatal("expected duplicate route error")
	}
}

func TestConfigSnapshot_KeepsUnsupportedMethodRoutable(t *testing.T) {
	cfg := Config{Routes: []RouteSpec{{StreamID: "a", Method: "PATCH"}}}
	snap, err := cfg.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	r, ok := snap.Route("a")
	if !ok || r.Method != MethodUnsupported || r.RawMethod != "PATCH" {
		t.Fatalf("route=%+v ok=%v", r, ok)
	}
}
