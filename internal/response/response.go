package response

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Brownie44l1/foundry-express/internal/headers"
)

var (
	ErrAlreadyWritten = errors.New("response already written")
	ErrOutOfOrder     = errors.New("response parts written out of order")

	ErrInvalidHeaderName  = errors.New("invalid response header name")
	ErrInvalidHeaderValue = errors.New("invalid response header value")
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes one HTTP/1.1 response to an io.Writer.
//
// Status line, headers and body must be written in that order, once each.
// Helpers (JSON, HTML, Redirect, ...) do all three in one call and leave the
// writer closed.
type Writer struct {
	w             io.Writer
	state         writerState
	statusCode    StatusCode
	staged        *headers.Headers
	contentLength int64 // -1 means unknown
	bytesWritten  int64
	hadError      bool
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:             w,
		state:         stateStart,
		staged:        headers.NewHeaders(),
		contentLength: -1,
	}
}

// Header returns headers staged for the response. They are sent with the
// first WriteHeaders call and by every helper.
func (w *Writer) Header() *headers.Headers {
	return w.staged
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return ErrAlreadyWritten
	}

	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, StatusText(code))
	if err := w.write([]byte(statusLine)); err != nil {
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes the staged headers overlaid with h, then the blank line.
// h may be nil.
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("%w: must write status line before headers", ErrOutOfOrder)
	}

	all, err := w.merge(h)
	if err != nil {
		return err
	}

	// Track framing for connection management
	if cl, ok := all.Get("content-length"); ok {
		if length, err := strconv.ParseInt(cl, 10, 64); err == nil {
			w.contentLength = length
		}
	}

	var block strings.Builder
	all.Each(func(name, value string) {
		fmt.Fprintf(&block, "%s: %s\r\n", name, value)
	})
	block.WriteString("\r\n")

	if err := w.write([]byte(block.String())); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the complete response body and closes the writer
func (w *Writer) WriteBody(data []byte) error {
	if w.state == stateBodyWritten {
		return ErrAlreadyWritten
	}
	if w.state != stateHeadersWritten {
		return fmt.Errorf("%w: must write headers before body", ErrOutOfOrder)
	}

	if len(data) > 0 {
		if err := w.write(data); err != nil {
			return err
		}
		w.bytesWritten += int64(len(data))
	}

	w.state = stateBodyWritten
	return nil
}

// merge overlays h on the staged headers. A name or value that would break
// the header block is refused before anything reaches the wire.
func (w *Writer) merge(h *headers.Headers) (*headers.Headers, error) {
	all := headers.NewHeaders()
	all.Merge(w.staged)
	all.Merge(h)

	var err error
	all.Each(func(name, value string) {
		switch {
		case err != nil:
		case !headers.ValidName(name):
			err = fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
		case !headers.ValidValue(value):
			err = fmt.Errorf("%w: %s: %q", ErrInvalidHeaderValue, name, value)
		}
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

func (w *Writer) write(p []byte) error {
	if _, err := w.w.Write(p); err != nil {
		w.hadError = true
		return err
	}
	return nil
}

// State tracking methods for connection management

// Written reports whether any part of the response has been sent
func (w *Writer) Written() bool {
	return w.state != stateStart
}

// Done reports whether the response is complete
func (w *Writer) Done() bool {
	return w.state == stateBodyWritten
}

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) HasContentLength() bool {
	return w.contentLength >= 0
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}
