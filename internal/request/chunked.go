package request

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidChunkSize      = errors.New("invalid chunk size")
	ErrChunkTooLarge         = errors.New("chunk size too large")
	ErrChunkSizeLineTooLong  = errors.New("chunk size line too long")
	ErrInvalidChunkExtension = errors.New("invalid chunk extension")
	ErrInvalidChunkFormat    = errors.New("invalid chunk format")
	ErrTrailerTooLarge       = errors.New("trailer section too large")
	ErrBodyTooLarge          = errors.New("body exceeds maximum size")
)

const (
	maxChunkSize     = 10 << 20 // per chunk
	maxChunkSizeLine = 1024
	maxChunkHexLen   = 16
	maxTrailerBytes  = 8192
)

type chunkPhase int

const (
	phaseSize chunkPhase = iota
	phaseData
	phaseDataEnd
	phaseTrailer
	phaseEnd
)

// chunkDecoder turns a chunked body into req.Body, and its trailer section
// into req.Trailer. It resumes where the previous call stopped.
type chunkDecoder struct {
	phase        chunkPhase
	remaining    int64 // bytes left in the current chunk
	trailerBytes int
}

// decode consumes what it can from data. done is set once the trailer
// section has been read.
func (d *chunkDecoder) decode(data []byte, req *Request, limits Limits) (int, bool, error) {
	consumed := 0

	for d.phase != phaseEnd {
		rest := data[consumed:]

		var n int
		var err error
		switch d.phase {
		case phaseSize:
			n, err = d.readSize(rest)
		case phaseData:
			n, err = d.readData(rest, req, limits.MaxBodySize)
		case phaseDataEnd:
			n, err = d.readDataEnd(rest)
		case phaseTrailer:
			n, err = d.readTrailer(rest, req)
		}
		if err != nil {
			return consumed, false, err
		}

		consumed += n
		if n == 0 && d.phase != phaseEnd {
			// Need more data
			return consumed, false, nil
		}
	}

	return consumed, true, nil
}

// readSize parses SIZE[;extensions]\r\n
func (d *chunkDecoder) readSize(data []byte) (int, error) {
	window := data[:min(len(data), maxChunkSizeLine)]
	idx := bytes.Index(window, crlf)
	if idx == -1 {
		if len(data) >= maxChunkSizeLine {
			return 0, ErrChunkSizeLineTooLong
		}
		return 0, nil
	}

	line := data[:idx]
	sizeField, ext, hasExt := bytes.Cut(line, []byte(";"))
	if hasExt && bytes.ContainsAny(ext, "\x00") {
		return 0, ErrInvalidChunkExtension
	}

	size, err := parseChunkSize(bytes.TrimRight(sizeField, " \t"))
	if err != nil {
		return 0, err
	}

	d.remaining = size
	if size == 0 {
		d.phase = phaseTrailer
	} else {
		d.phase = phaseData
	}
	return idx + 2, nil
}

func (d *chunkDecoder) readData(data []byte, req *Request, maxBody int64) (int, error) {
	n := int(min(d.remaining, int64(len(data))))
	if int64(len(req.Body))+int64(n) > maxBody {
		return 0, ErrBodyTooLarge
	}

	req.Body = append(req.Body, data[:n]...)
	d.remaining -= int64(n)
	if d.remaining == 0 {
		d.phase = phaseDataEnd
	}
	return n, nil
}

func (d *chunkDecoder) readDataEnd(data []byte) (int, error) {
	if len(data) < 2 {
		return 0, nil
	}
	if !bytes.HasPrefix(data, crlf) {
		return 0, ErrInvalidChunkFormat
	}

	d.phase = phaseSize
	return 2, nil
}

// readTrailer collects trailer fields until the blank line
func (d *chunkDecoder) readTrailer(data []byte, req *Request) (int, error) {
	n, done, err := req.Trailer.Parse(data)
	if err != nil {
		return 0, fmt.Errorf("trailer: %w", err)
	}

	d.trailerBytes += n
	if d.trailerBytes > maxTrailerBytes || (!done && len(data)-n > maxTrailerBytes) {
		return 0, ErrTrailerTooLarge
	}

	if done {
		d.phase = phaseEnd
	}
	return n, nil
}

// parseChunkSize accepts hex digits only; strconv alone would take a sign
func parseChunkSize(field []byte) (int64, error) {
	if len(field) == 0 || len(field) > maxChunkHexLen {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChunkSize, field)
	}
	for _, b := range field {
		if !isHexDigit(b) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidChunkSize, field)
		}
	}

	size, err := strconv.ParseUint(string(field), 16, 63)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidChunkSize, err)
	}
	if size > maxChunkSize {
		return 0, ErrChunkTooLarge
	}
	return int64(size), nil
}

func isHexDigit(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f') || ('A' <= b && b <= 'F')
}
