package httpsink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// RequestBuilder turns extracted fields into one outbound request.
// Implementations must not perform I/O.
type RequestBuilder interface {
	Build(stream string, fields Fields, route RouteConfig, settings Settings) (*http.Request, error)
}

var (
	buildersMu sync.RWMutex
	builders   = map[string]RequestBuilder{
		"":        DefaultBuilder{},
		"default": DefaultBuilder{},
	}
)

// RegisterBuilder makes a builder selectable through a route's data_format.
func RegisterBuilder(format string, b RequestBuilder) {
	buildersMu.Lock()
	builders[format] = b
	buildersMu.Unlock()
}

// Build resolves the route's builder and wraps any failure in a *BuildError.
func Build(stream string, fields Fields, route RouteConfig, settings Settings) (*http.Request, error) {
	buildersMu.RLock()
	b, ok := builders[route.DataFormat]
	buildersMu.RUnlock()
	if !ok {
		return nil, &BuildError{Stream: stream, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, route.DataFormat)}
	}
	req, err := b.Build(stream, fields, route, settings)
	if err != nil {
		return nil, &BuildError{Stream: stream, Err: err}
	}
	return req, nil
}

// DefaultBuilder sends fields as a flat JSON object for POST/PUT and as a
// query string for GET.
type DefaultBuilder struct{}

func (DefaultBuilder) Build(_ string, fields Fields, route RouteConfig, settings Settings) (*http.Request, error) {
	if route.Method == MethodUnsupported {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, route.RawMethod)
	}
	u, err := routeURL(settings, route.Path)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	if route.Method.hasBody() {
		body, err := encodeJSON(fields)
		if err != nil {
			return nil, err
		}
		req, err = http.NewRequest(route.Method.String(), u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
	} else {
		q := encodeQuery(fields)
		if u.RawQuery != "" && q != "" {
			u.RawQuery += "&" + q
		} else if q != "" {
			u.RawQuery = q
		}
		req, err = http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
		}
	}

	for k, v := range route.Headers {
		req.Header.Set(k, v)
	}
	if route.Method.hasBody() && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if settings.EnableCredential && !settings.EnableToken {
		req.SetBasicAuth(settings.Username, settings.Password)
	}
	if settings.EnableToken {
		req.Header.Set("Authorization", "Bearer "+settings.Token)
	}
	return req, nil
}

func routeURL(s Settings, path string) (*url.URL, error) {
	raw := s.Domain
	if s.Port != 0 {
		raw += ":" + strconv.Itoa(s.Port)
	}
	raw += path
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: url %q: %v", ErrEncoding, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q is not absolute", ErrEncoding, raw)
	}
	return u, nil
}

func encodeJSON(fields Fields) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields.Map()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encodeQuery emits pairs in column order; a repeated name appears once
// with its last value, matching the JSON body.
func encodeQuery(fields Fields) string {
	m := fields.Map()
	seen := make(map[string]bool, len(m))
	var b strings.Builder
	for _, f := range fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(m[f.Name]))
	}
	return b.String()
}
