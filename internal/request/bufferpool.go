package request

import "sync"

const (
	smallBufferSize = 4096
	largeBufferSize = 32768
)

// bufferPool keeps read buffers alive across requests on busy servers.
type bufferPool struct {
	small sync.Pool
	large sync.Pool
}

var readBuffers = &bufferPool{
	small: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() interface{} {
			buf := make([]byte, largeBufferSize)
			return &buf
		},
	},
}

// GetBuffer returns a buffer of exactly size bytes, pooled when possible
func GetBuffer(size int) []byte {
	switch {
	case size <= smallBufferSize:
		buf := readBuffers.small.Get().(*[]byte)
		return (*buf)[:size]
	case size <= largeBufferSize:
		buf := readBuffers.large.Get().(*[]byte)
		return (*buf)[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer obtained from GetBuffer to its pool.
// Buffers of other capacities are left to the GC.
func PutBuffer(buf []byte) {
	switch cap(buf) {
	case smallBufferSize:
		full := buf[:smallBufferSize]
		readBuffers.small.Put(&full)
	case largeBufferSize:
		full := buf[:largeBufferSize]
		readBuffers.large.Put(&full)
	}
}
