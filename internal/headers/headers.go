package headers

import (
	"bytes"
	"errors"
	"fmt"
	"net/textproto"
	"sort"
	"strings"
)

var ErrMalformedHeader = errors.New("malformed header")

// Headers is a case-insensitive, multi-value header store.
// Keys are kept lowercase; Each yields them in canonical form.
type Headers struct {
	headers map[string][]string
}

func NewHeaders() *Headers {
	return &Headers{
		headers: make(map[string][]string),
	}
}

// Get returns the first value for a header
func (h *Headers) Get(key string) (string, bool) {
	values := h.headers[strings.ToLower(key)]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Value returns the first value for a header, or "" when absent
func (h *Headers) Value(key string) string {
	v, _ := h.Get(key)
	return v
}

// Has reports whether the header is present
func (h *Headers) Has(key string) bool {
	_, ok := h.headers[strings.ToLower(key)]
	return ok
}

// GetAll returns all values for a header
func (h *Headers) GetAll(key string) []string {
	return h.headers[strings.ToLower(key)]
}

// Set replaces all values for a header
func (h *Headers) Set(key, value string) {
	h.headers[strings.ToLower(key)] = []string{value}
}

// Add appends a value to a header
func (h *Headers) Add(key, value string) {
	key = strings.ToLower(key)
	h.headers[key] = append(h.headers[key], value)
}

// Del removes a header
func (h *Headers) Del(key string) {
	delete(h.headers, strings.ToLower(key))
}

// Len returns the number of distinct header names
func (h *Headers) Len() int {
	return len(h.headers)
}

// Merge copies every value of other into h, replacing headers present in both.
func (h *Headers) Merge(other *Headers) {
	if other == nil {
		return
	}
	for key, values := range other.headers {
		h.headers[key] = append([]string(nil), values...)
	}
}

// Each calls fn for every header value, sorted by name, with the name in
// canonical MIME form (content-type -> Content-Type).
func (h *Headers) Each(fn func(name, value string)) {
	keys := make([]string, 0, len(h.headers))
	for key := range h.headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := textproto.CanonicalMIMEHeaderKey(key)
		for _, value := range h.headers[key] {
			fn(name, value)
		}
	}
}

// Parse parses header lines from raw bytes until the empty line.
// Returns bytes consumed, whether the terminating empty line was seen,
// and the first syntax error.
func (h *Headers) Parse(data []byte) (int, bool, error) {
	read := 0
	done := false

	for {
		idx := bytes.Index(data[read:], []byte("\r\n"))
		if idx == -1 {
			// Need more data
			break
		}

		if idx == 0 {
			// Empty line = end of headers
			done = true
			read += 2
			break
		}

		line := data[read : read+idx]

		// Obsolete line folding is rejected
		if line[0] == ' ' || line[0] == '\t' {
			return read, false, fmt.Errorf("%w: obsolete line folding not supported", ErrMalformedHeader)
		}

		name, value, err := parseHeader(line)
		if err != nil {
			return read, done, err
		}

		// Duplicates are kept; callers decide how to combine them
		h.Add(name, value)

		read += idx + 2
	}

	return read, done, nil
}

func parseHeader(line []byte) (string, string, error) {
	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", fmt.Errorf("%w: no colon", ErrMalformedHeader)
	}

	name := line[:colonIdx]
	value := line[colonIdx+1:]

	if len(name) == 0 {
		return "", "", fmt.Errorf("%w: empty name", ErrMalformedHeader)
	}

	if bytes.ContainsAny(name, " \t") {
		return "", "", fmt.Errorf("%w: whitespace in name", ErrMalformedHeader)
	}

	for _, b := range name {
		if !isTokenChar(b) {
			return "", "", fmt.Errorf("%w: invalid character in name: %c", ErrMalformedHeader, b)
		}
	}

	if bytes.IndexByte(value, 0) != -1 {
		return "", "", fmt.Errorf("%w: null byte in value", ErrMalformedHeader)
	}

	value = bytes.TrimSpace(value)

	return strings.ToLower(string(name)), string(value), nil
}

// ValidName reports whether name is a non-empty token
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isTokenChar(name[i]) {
			return false
		}
	}
	return true
}

// ValidValue reports whether value can be written on one header line
func ValidValue(value string) bool {
	return !strings.ContainsAny(value, "\r\n\x00")
}

// isTokenChar reports whether b is a valid RFC 9110 token character
func isTokenChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') ||
		(b >= 'a' && b <= 'z') ||
		(b >= '0' && b <= '9') ||
		b == '!' || b == '#' || b == '$' || b == '%' || b == '&' ||
		b == '\'' || b == '*' || b == '+' || b == '-' || b == '.' ||
		b == '^' || b == '_' || b == '`' || b == '|' || b == '~'
}
