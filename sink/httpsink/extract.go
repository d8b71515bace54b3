package httpsink

import "sinkflow/internal/unescape"

type Field struct {
	Name  string
	Value string
}

// Fields keeps the configured column order.
type Fields []Field

// Map collapses Fields; a repeated name keeps its last value.
func (f Fields) Map() map[string]string {
	m := make(map[string]string, len(f))
	for _, kv := range f {
		m[kv.Name] = kv.Value
	}
	return m
}

// Extract maps the delimited columns of raw onto names by position.
// Missing columns become "" and surplus columns are discarded. Values longer
// than maxBytes are cut to exactly maxBytes bytes, even inside a multi-byte
// character.
func Extract(raw []byte, sep rune, names []string, maxBytes int) Fields {
	cols := unescape.Split(string(raw), sep)
	out := make(Fields, len(names))
	for i, name := range names {
		v := ""
		if i < len(cols) {
			v = cols[i]
		}
		if maxBytes > 0 && len(v) > maxBytes {
			v = v[:maxBytes]
		}
		out[i] = Field{Name: name, Value: v}
	}
	return out
}
