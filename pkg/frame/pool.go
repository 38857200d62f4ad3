package frame

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	minClassShift = 6  // 64 B
	maxClassShift = 17 // 128 KiB, fits header + MaxPayload
	numClasses    = maxClassShift - minClassShift + 1
)

// Pool hands out byte slices from power-of-two size classes.
// It is safe for concurrent use by many sessions.
type Pool struct {
	classes [numClasses]sync.Pool

	gets     atomic.Uint64
	puts     atomic.Uint64
	doubles  atomic.Uint64
	oversize atomic.Uint64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Gets           uint64
	Puts           uint64
	DoubleReleases uint64
	Oversize       uint64
}

// InUse returns the number of buffers rented and not yet returned.
func (s Stats) InUse() int64 {
	return int64(s.Gets) - int64(s.Puts)
}

// Default is the process-wide pool.
var Default = NewPool()

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// classFor returns the size class index holding n bytes, or -1 when n is
// larger than the biggest class.
func classFor(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// Get returns a slice of length n. Its capacity may be larger.
func (p *Pool) Get(n int) []byte {
	p.gets.Add(1)
	idx := classFor(n)
	if idx < 0 {
		p.oversize.Add(1)
		return make([]byte, n)
	}
	if v := p.classes[idx].Get(); v != nil {
		b := v.(*[]byte)
		return (*b)[:n]
	}
	return make([]byte, n, 1<<(idx+minClassShift))
}

// Put returns b to the pool. Slices whose capacity is not an exact class
// size are dropped.
func (p *Pool) Put(b []byte) {
	p.puts.Add(1)
	c := cap(b)
	idx := classFor(c)
	if idx < 0 || c != 1<<(idx+minClassShift) {
		return
	}
	b = b[:0]
	p.classes[idx].Put(&b)
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Gets:           p.gets.Load(),
		Puts:           p.puts.Load(),
		DoubleReleases: p.doubles.Load(),
		Oversize:       p.oversize.Load(),
	}
}

func (p *Pool) doubleRelease() {
	p.doubles.Add(1)
}
