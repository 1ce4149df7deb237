// Package pool shares byte buffers of mixing rounds. There is one pool per
// buffer size.
package pool

import (
	"sync"
)

var m = struct {
	sync.Mutex
	pools map[int]*Pool
}{
	pools: map[int]*Pool{},
}

// Pool allocates buffers of the same size.
type Pool struct {
	size int
	pool sync.Pool
}

// Get returns pool of buffers with size bytes.
func Get(size int) *Pool {
	m.Lock()
	defer m.Unlock()
	if p, ok := m.pools[size]; ok {
		return p
	}

	p := New(size)
	m.pools[size] = p
	return p
}

// New returns pool of buffers with size bytes.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Alloc returns buffer of pool size. Its content is undefined.
func (p *Pool) Alloc() []byte {
	return *p.pool.Get().(*[]byte)
}

// Free returns buffer to the pool. Buffers of other size are dropped.
func (p *Pool) Free(b []byte) {
	if cap(b) < p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}
