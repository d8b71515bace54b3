package httpsink

import (
	"errors"
	"fmt"
)

var (
	// ErrRouteAbsent: the stream has no route. Terminal; the event is dropped unacked.
	ErrRouteAbsent = errors.New("httpsink: no route for stream")
	// ErrUnsupportedMethod: route config is invalid. Terminal until fixed upstream.
	ErrUnsupportedMethod = errors.New("httpsink: unsupported method")
	// ErrUnknownFormat: the route names a data format with no registered builder.
	ErrUnknownFormat = errors.New("httpsink: unknown data format")
	// ErrEncoding covers URL construction and body serialization.
	ErrEncoding = errors.New("httpsink: request encoding failed")
	ErrClosed   = errors.New("httpsink: dispatcher closed")
)

// BuildError reports a request that could not be constructed. It never
// reaches the transport.
type BuildError struct {
	Stream string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build request for stream %s: %v", e.Stream, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// dropReason names the dead-letter subject for a terminal build failure.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrRouteAbsent):
		return "route_absent"
	case errors.Is(err, ErrUnsupportedMethod), errors.Is(err, ErrUnknownFormat):
		return "config_invalid"
	default:
		return "encoding"
	}
}
