// Package body converts accumulated request bodies into structured values.
package body

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported body parse format")
	ErrUnsupportedEncoding = errors.New("unsupported request encoding")
	ErrMalformedBody       = errors.New("malformed request body")
)

// Format selects how a raw body string becomes a structured value.
type Format int

const (
	Raw Format = iota
	JSON
	QueryString
)

var formatNames = map[Format]string{
	Raw:         "raw",
	JSON:        "json",
	QueryString: "querystring",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Valid reports whether f is one of the declared formats
func (f Format) Valid() bool {
	_, ok := formatNames[f]
	return ok
}

// ParseFormat maps a settings name ("raw", "json", "querystring") to a Format.
func ParseFormat(name string) (Format, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == lowered {
			return f, nil
		}
	}
	return Raw, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Parse converts raw according to format:
//
//	Raw         -> string, unchanged
//	JSON        -> decoded JSON value (map[string]any, []any, float64, ...)
//	QueryString -> url.Values
func Parse(raw string, format Format) (any, error) {
	switch format {
	case Raw:
		return raw, nil

	case JSON:
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		return v, nil

	case QueryString:
		return ParseQuery(raw), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ParseQuery splits a urlencoded string into values. Unlike url.ParseQuery
// it never drops a pair: ';' is ordinary text, and a bad escape is kept
// as written.
func ParseQuery(raw string) url.Values {
	values := url.Values{}
	for pair := range strings.SplitSeq(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		values[key] = append(values[key], unescape(value))
	}
	return values
}

func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}

	// Decode the escapes that are well formed, leave the rest
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '+':
			b.WriteByte(' ')
		case s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}

// LookupEncoding resolves a charset label such as "utf-8", "utf8" or "latin1".
func LookupEncoding(charset string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(charset))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, charset)
	}
	return enc, nil
}

// Decode turns body bytes into a string using charset.
// Invalid byte sequences are replaced with U+FFFD.
func Decode(raw []byte, charset string) (string, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return "", err
	}

	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return string(out), nil
}
