package request

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Size limits
const (
	maxRequestLineSize = 8192      // 8KB for request line
	maxHeaderSize      = 1 << 20   // 1MB total headers
	maxBodySize        = 100 << 20 // 100MB body
	maxHeaderLines     = 1000
	maxURILength       = 8192
	readChunkSize      = 4096
)

var (
	ErrRequestLineTooLarge = errors.New("request line too large")
	ErrHeaderTooLarge      = errors.New("headers too large")
	ErrTooManyHeaders      = errors.New("too many header lines")
	ErrURITooLong          = errors.New("URI too long")
)

// parserState is ordered: run stops once the state reaches its target.
type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateBody
	stateDone
)

// parser handles incremental parsing of HTTP requests
type parser struct {
	state  parserState
	buffer []byte // bytes read but not yet consumed
	chunks chunkDecoder
	limits Limits

	totalBytesRead int64
	headBytes      int
}

func newParser(limits Limits) *parser {
	return &parser{
		state:  stateRequestLine,
		limits: limits.withDefaults(),
	}
}

// run reads from src until the parser reaches the until state.
func (p *parser) run(src io.Reader, req *Request, until parserState) error {
	readBuf := GetBuffer(readChunkSize)
	defer PutBuffer(readBuf)

	eof := false
	for p.state < until {
		if len(p.buffer) > 0 {
			before := p.state
			consumed, err := p.parse(p.buffer, req)
			if err != nil {
				return err
			}

			p.buffer = p.buffer[consumed:]
			if consumed > 0 || p.state != before {
				continue
			}
		}

		if p.state < stateBody && len(p.buffer) >= p.limits.MaxHeaderBytes {
			return ErrHeaderTooLarge
		}

		if eof {
			if p.state == stateRequestLine && p.totalBytesRead == 0 && len(p.buffer) == 0 {
				// Peer closed between requests
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}

		n, err := src.Read(readBuf)
		if n > 0 {
			p.buffer = append(p.buffer, readBuf[:n]...)
			p.totalBytesRead += int64(n)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				eof = true
				continue
			}
			return fmt.Errorf("read error: %w", err)
		}
	}

	return nil
}

// parse processes buffered data and advances the state machine.
// Returns number of bytes consumed.
func (p *parser) parse(data []byte, req *Request) (int, error) {
	switch p.state {
	case stateRequestLine:
		return p.parseRequestLine(data, req)

	case stateHeaders:
		return p.parseHeaders(data, req)

	case stateBody:
		if req.IsChunked() {
			return p.parseChunkedBody(data, req)
		}
		return p.parseFixedBody(data, req)

	case stateDone:
		return 0, nil

	default:
		return 0, fmt.Errorf("invalid parser state: %d", p.state)
	}
}

func (p *parser) parseRequestLine(data []byte, req *Request) (int, error) {
	method, target, version, consumed, err := parseRequestLine(data)
	if err != nil {
		return 0, err
	}

	if consumed == 0 {
		if len(data) > maxRequestLineSize {
			return 0, ErrRequestLineTooLarge
		}
		// Need more data
		return 0, nil
	}

	if consumed > maxRequestLineSize {
		return 0, ErrRequestLineTooLarge
	}

	if len(target) > maxURILength {
		return 0, ErrURITooLong
	}

	req.Method = method
	req.Target = target
	req.Version = version

	p.headBytes += consumed
	p.state = stateHeaders
	return consumed, nil
}

// parseHeaders parses HTTP headers until empty line
func (p *parser) parseHeaders(data []byte, req *Request) (int, error) {
	consumed, done, err := req.Headers.Parse(data)
	if err != nil {
		return 0, err
	}

	p.headBytes += consumed
	if p.headBytes > p.limits.MaxHeaderBytes {
		return 0, ErrHeaderTooLarge
	}

	if req.Headers.Len() > maxHeaderLines {
		return 0, ErrTooManyHeaders
	}

	if !done {
		return consumed, nil
	}

	if req.IsChunked() {
		p.state = stateBody
		return consumed, nil
	}

	if raw, ok := req.Headers.Get("content-length"); ok {
		cl, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || cl < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidContentLength, raw)
		}

		if cl > p.limits.MaxBodySize {
			return 0, ErrBodyTooLarge
		}

		if cl > 0 {
			p.state = stateBody
			return consumed, nil
		}
	}

	// No body (GET request, or Content-Length: 0)
	p.state = stateDone
	return consumed, nil
}

// parseFixedBody reads body with known Content-Length
func (p *parser) parseFixedBody(data []byte, req *Request) (int, error) {
	cl := req.ContentLength()
	if cl < 0 {
		return 0, ErrInvalidContentLength
	}

	remaining := int(cl) - len(req.Body)
	if remaining <= 0 {
		p.state = stateDone
		return 0, nil
	}

	toRead := min(remaining, len(data))
	req.Body = append(req.Body, data[:toRead]...)

	if len(req.Body) == int(cl) {
		p.state = stateDone
	}

	return toRead, nil
}

// parseChunkedBody reads Transfer-Encoding: chunked body
func (p *parser) parseChunkedBody(data []byte, req *Request) (int, error) {
	consumed, done, err := p.chunks.decode(data, req, p.limits)
	if err != nil {
		return 0, err
	}

	if done {
		p.state = stateDone
	}

	return consumed, nil
}
