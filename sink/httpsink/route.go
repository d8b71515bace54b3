package httpsink

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// Method is the closed set of verbs a route may use.
type Method uint8

const (
	MethodUnsupported Method = iota
	MethodGet
	MethodPost
	MethodPut
)

// ParseMethod is case-insensitive; an empty value selects POST.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GET":
		return MethodGet, nil
	case "", "POST":
		return MethodPost, nil
	case "PUT":
		return MethodPut, nil
	default:
		return MethodUnsupported, fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
}

func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	default:
		return "UNSUPPORTED"
	}
}

func (m Method) hasBody() bool { return m == MethodPost || m == MethodPut }

const DefaultSeparator = '|'

// RouteConfig is the per-stream destination. It is never mutated after
// NewRouteConfig returns.
type RouteConfig struct {
	Stream     string
	Path       string
	Method     Method
	RawMethod  string // as configured; reported when Method is unsupported
	Headers    map[string]string
	Separator  rune
	Fields     []string // positional: Fields[i] names column i
	DataFormat string
}

// NewRouteConfig applies defaults and copies the mutable inputs. A method
// outside {GET, POST, PUT} is kept as MethodUnsupported so that every
// event routed to it fails at build time rather than vanishing as an
// unknown stream.
func NewRouteConfig(spec RouteSpec) (RouteConfig, error) {
	if spec.StreamID == "" {
		return RouteConfig{}, fmt.Errorf("httpsink: route without stream_id")
	}
	sep := DefaultSeparator
	if spec.Separator != "" {
		r, size := utf8.DecodeRuneInString(spec.Separator)
		if r == utf8.RuneError || size != len(spec.Separator) {
			return RouteConfig{}, fmt.Errorf("httpsink: route %s: separator %q must be one character", spec.StreamID, spec.Separator)
		}
		sep = r
	}
	m, _ := ParseMethod(spec.Method)
	return RouteConfig{
		Stream:     spec.StreamID,
		Path:       spec.Path,
		Method:     m,
		RawMethod:  spec.Method,
		Headers:    maps.Clone(spec.Headers),
		Separator:  sep,
		Fields:     slices.Clone(spec.Fields),
		DataFormat: spec.DataFormat,
	}, nil
}

// Settings are the process-wide sink knobs.
type Settings struct {
	Domain           string
	Port             int // 0 omits the port from the URL
	KeywordMaxLength int // per-field byte limit; <= 0 disables truncation
	EnableToken      bool
	Token            string
	EnableCredential bool
	Username         string
	Password         string
	TaskName         string
}

// Snapshot is an immutable view of settings plus routes. Readers keep the
// pointer they loaded for the whole attempt, so a concurrent refresh is
// never observed half applied.
type Snapshot struct {
	settings Settings
	routes   map[string]RouteConfig
}

func NewSnapshot(settings Settings, routes []RouteConfig) *Snapshot {
	m := make(map[string]RouteConfig, len(routes))
	for _, r := range routes {
		m[r.Stream] = r
	}
	return &Snapshot{settings: settings, routes: m}
}

func (s *Snapshot) Settings() Settings { return s.settings }

func (s *Snapshot) Route(stream string) (RouteConfig, bool) {
	r, ok := s.routes[stream]
	return r, ok
}

func (s *Snapshot) Len() int { return len(s.routes) }
