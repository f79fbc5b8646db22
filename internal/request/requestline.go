package request

import (
	"bytes"
	"errors"
	"strings"
)

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrInvalidMethod        = errors.New("invalid HTTP method")
	ErrInvalidPath          = errors.New("invalid request path")
	ErrUnsupportedVersion   = errors.New("unsupported HTTP version")
)

var crlf = []byte("\r\n")

// parseRequestLine parses: METHOD TARGET VERSION\r\n
// Returns: method (uppercased), target, version, bytesConsumed, error.
// A zero byte count with a nil error means the line is not complete yet.
func parseRequestLine(data []byte) (string, string, string, int, error) {
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return "", "", "", 0, nil
	}

	line := data[:idx]
	consumed := idx + 2

	parts := bytes.Split(line, []byte(" "))
	if len(parts) != 3 {
		return "", "", "", 0, ErrMalformedRequestLine
	}

	method := strings.ToUpper(string(parts[0]))
	target := string(parts[1])
	version := string(parts[2])

	if !isValidMethod(method) {
		return "", "", "", 0, ErrInvalidMethod
	}

	if !isValidTarget(target) {
		return "", "", "", 0, ErrInvalidPath
	}

	if !isValidVersion(version) {
		return "", "", "", 0, ErrUnsupportedVersion
	}

	return method, target, version, consumed, nil
}

// isValidMethod checks if the HTTP method is one the server understands
func isValidMethod(method string) bool {
	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE", "CONNECT":
		return true
	default:
		return false
	}
}

// isValidTarget accepts origin-form (/path?query), absolute-form and "*"
func isValidTarget(target string) bool {
	if len(target) == 0 {
		return false
	}

	if target[0] == '/' || target == "*" {
		return true
	}

	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// isValidVersion checks if HTTP version is supported
func isValidVersion(version string) bool {
	return version == "HTTP/1.0" || version == "HTTP/1.1"
}