package request

import "io"

// Limits bounds what a Stream accepts. Zero values select the defaults.
type Limits struct {
	MaxHeaderBytes int
	MaxBodySize    int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = maxHeaderSize
	}
	if l.MaxBodySize <= 0 {
		l.MaxBodySize = maxBodySize
	}
	return l
}

// Stream reads successive requests from one connection.
// Bytes read past the end of a request are kept for the next one,
// so pipelined requests are not lost.
type Stream struct {
	src     io.Reader
	limits  Limits
	pending []byte
}

func NewStream(src io.Reader, limits Limits) *Stream {
	return &Stream{
		src:    src,
		limits: limits.withDefaults(),
	}
}

// ReadHead reads the next request line and headers. The body is left on
// the connection until Request.ReadBody is called.
//
// io.EOF is returned when the peer closed the connection between requests.
func (s *Stream) ReadHead() (*Request, error) {
	p := newParser(s.limits)
	p.buffer = s.pending
	s.pending = nil

	req := newRequest()
	req.stream = s
	req.parser = p

	if err := p.run(s.src, req, stateBody); err != nil {
		return nil, err
	}

	if p.state == stateDone {
		req.finish()
	}

	return req, nil
}

// Buffered returns how many bytes of a following request are already held.
func (s *Stream) Buffered() int {
	return len(s.pending)
}
