package audio

import (
	"sync"
)

// BufferPool manages reusable byte slices for decoded sample data
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool creates a new buffer pool
func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, initialSize)
			},
		},
	}
}

// Get retrieves a buffer from the pool
func (p *BufferPool) Get(minSize int) []byte {
	buf := p.pool.Get().([]byte)
	if cap(buf) < minSize {
		return make([]byte, minSize)
	}
	return buf[:minSize]
}

// Put returns a buffer to the pool
func (p *BufferPool) Put(buf []byte) {
	buf = buf[:cap(buf)]
	p.pool.Put(buf)
}

// Global pool sized for one decoded 4096-sample S16LE chunk
var globalBufferPool = NewBufferPool(8192)

// GetBuffer gets a buffer from the global pool
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the global pool
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
