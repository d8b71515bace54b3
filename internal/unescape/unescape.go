// Package unescape splits delimited text records whose producers escape the
// delimiter, backslash and line breaks with a leading backslash.
package unescape

import "strings"

// Split cuts text on sep. A backslash makes the next character literal,
// except \n, \r and \t which decode to their control characters. A trailing
// lone backslash is kept as is. Split always returns at least one field.
func Split(text string, sep rune) []string {
	fields := make([]string, 0, strings.Count(text, string(sep))+1)
	var b strings.Builder
	escaped := false
	for _, r := range text {
		if escaped {
			escaped = false
			switch r {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteRune(r)
			}
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case sep:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return append(fields, b.String())
}
