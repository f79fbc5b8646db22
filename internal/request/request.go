package request

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/Brownie44l1/foundry-express/internal/body"
	"github.com/Brownie44l1/foundry-express/internal/headers"
)

var (
	ErrInvalidTarget        = errors.New("invalid request target")
	ErrInvalidContentLength = errors.New("invalid content-length")
)

// Request is an HTTP/1.x request read from a connection.
//
// The head (request line and headers) is available as soon as ReadHead
// returns. Body stays empty until ReadBody has accumulated every byte.
type Request struct {
	Method  string
	Target  string // raw request-target from the request line
	Version string
	Headers *headers.Headers
	Body    []byte

	// Trailer holds fields sent after a chunked body.
	Trailer *headers.Headers

	// Set by ParseURL. Path is the target's path exactly as sent, escapes
	// included; URL.Path has them decoded.
	URL   *url.URL
	Path  string
	Query url.Values

	// ParsedBody is the body converted per the matched route's parse format.
	ParsedBody any

	// ID correlates log lines for the request; empty unless a middleware sets it.
	ID string

	// RemoteAddr is the peer address, set by the server.
	RemoteAddr string

	stream   *Stream
	parser   *parser
	bodyRead bool
}

func newRequest() *Request {
	return &Request{
		Headers: headers.NewHeaders(),
		Trailer: headers.NewHeaders(),
	}
}

// RequestFromReader reads one complete request, body included.
func RequestFromReader(reader io.Reader) (*Request, error) {
	s := NewStream(reader, Limits{})

	req, err := s.ReadHead()
	if err != nil {
		return nil, err
	}

	if err := req.ReadBody(); err != nil {
		return nil, err
	}

	return req, nil
}

// ReadBody accumulates the remaining body bytes into r.Body.
// Calling it again after success is a no-op.
func (r *Request) ReadBody() error {
	if r.bodyRead {
		return nil
	}

	if err := r.parser.run(r.stream.src, r, stateDone); err != nil {
		return err
	}

	r.finish()
	return nil
}

// BodyRead reports whether the body has been fully consumed from the connection.
func (r *Request) BodyRead() bool {
	return r.bodyRead
}

// finish hands unconsumed bytes back to the stream for the next request.
func (r *Request) finish() {
	r.bodyRead = true
	if r.stream != nil {
		r.stream.pending = r.parser.buffer
	}
}

// ParseURL splits the request target into path and query.
func (r *Request) ParseURL() error {
	if r.Target == "*" {
		r.URL = &url.URL{Path: "*"}
		r.Path = "*"
		r.Query = url.Values{}
		return nil
	}

	u, err := url.ParseRequestURI(r.Target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	r.URL = u
	r.Path = rawPath(r.Target, u)
	r.Query = body.ParseQuery(u.RawQuery)
	return nil
}

// rawPath keeps percent escapes, so /a%2Fb and /a/b stay distinct
func rawPath(target string, u *url.URL) string {
	path := u.EscapedPath()
	if strings.HasPrefix(target, "/") {
		path, _, _ = strings.Cut(target, "?")
	}
	if path == "" {
		return "/"
	}
	return path
}

// Header returns the first value of a request header
func (r *Request) Header(key string) string {
	return r.Headers.Value(key)
}

// Param returns the first query value for key. ParseURL must have run.
func (r *Request) Param(key string) string {
	return r.Query.Get(key)
}

// ContentLength returns the declared body length, or -1 if absent
func (r *Request) ContentLength() int64 {
	cl, ok := r.Headers.Get("content-length")
	if !ok {
		return -1
	}

	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// IsChunked reports whether the body uses chunked transfer encoding
func (r *Request) IsChunked() bool {
	for _, te := range r.Headers.GetAll("transfer-encoding") {
		for _, part := range strings.Split(te, ",") {
			if strings.EqualFold(strings.TrimSpace(part), "chunked") {
				return true
			}
		}
	}
	return false
}

func (r *Request) IsHTTP10() bool {
	return r.Version == "HTTP/1.0"
}

func (r *Request) IsHTTP11() bool {
	return r.Version == "HTTP/1.1"
}

// WantsClose reports whether the client asked to close after this request
func (r *Request) WantsClose() bool {
	conn := strings.ToLower(r.Headers.Value("connection"))
	if r.IsHTTP10() {
		return conn != "keep-alive"
	}
	return conn == "close"
}

// WantsKeepAlive is the inverse of WantsClose
func (r *Request) WantsKeepAlive() bool {
	return !r.WantsClose()
}
