// Package bufpool keeps a free list of fixed-size packet buffers.
//
// Buffers are plain byte slices of exactly PacketSize bytes. The pool grows
// without bound on the calling goroutine when the free list is empty and
// never shrinks. A single mutex guards the free list; pool operations sit on
// the control path only, never on the audio render path.
package bufpool

import "sync"

// Stats is a snapshot of pool usage.
type Stats struct {
	// Allocated counts buffers ever created by the pool.
	Allocated int
	// Free counts buffers currently sitting in the free list.
	Free int
}

// Pool hands out packet buffers.
//
// Thread-safety: Get and Put are safe for concurrent use.
// Callers must Put each buffer they Get exactly once; the engine's Request
// type enforces this by owning one buffer for its whole lifetime.
type Pool struct {
	packetSize int

	mu        sync.Mutex
	free      [][]byte
	allocated int
}

// New creates a pool of packetSize-byte buffers.
// Panics if packetSize is not positive.
func New(packetSize int) *Pool {
	if packetSize <= 0 {
		panic("bufpool: packet size must be positive")
	}
	return &Pool{packetSize: packetSize}
}

// PacketSize returns the size of every buffer handed out.
func (p *Pool) PacketSize() int {
	return p.packetSize
}

// Get pops a buffer from the free list, allocating a new one if it is empty.
// The returned slice has length and capacity PacketSize. Its contents are
// whatever the previous owner left behind.
func (p *Pool) Get() []byte {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.allocated++
		p.mu.Unlock()
		return make([]byte, p.packetSize)
	}
	buf := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.mu.Unlock()
	return buf
}

// Put returns buf to the free list. Buffers whose capacity is not
// PacketSize did not come from this pool and are dropped.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.packetSize {
		return
	}
	buf = buf[:p.packetSize]
	p.mu.Lock()
	p.free = append(p.free, buf)
	p.mu.Unlock()
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Allocated: p.allocated, Free: len(p.free)}
}
