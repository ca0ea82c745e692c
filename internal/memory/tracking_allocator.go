package memory

import (
	"sync/atomic"

	"github.com/23skdu/catdist/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TrackingAllocator wraps a base memory.Allocator, keeping live and peak byte
// counts and feeding the allocator metrics.
type TrackingAllocator struct {
	memory.Allocator
	inUse atomic.Int64
	peak  atomic.Int64
}

// NewTrackingAllocator wraps base. If base is nil, it uses memory.DefaultAllocator.
func NewTrackingAllocator(base memory.Allocator) *TrackingAllocator {
	if base == nil {
		base = memory.DefaultAllocator
	}
	return &TrackingAllocator{Allocator: base}
}

func (a *TrackingAllocator) Allocate(size int) []byte {
	a.grow(int64(size))
	metrics.AllocatorBytesAllocatedTotal.Add(float64(size))
	metrics.AllocatorAllocationsActive.Inc()
	return a.Allocator.Allocate(size)
}

func (a *TrackingAllocator) Reallocate(size int, b []byte) []byte {
	a.grow(int64(size - len(b)))
	if size > len(b) {
		metrics.AllocatorBytesAllocatedTotal.Add(float64(size - len(b)))
	}
	return a.Allocator.Reallocate(size, b)
}

func (a *TrackingAllocator) Free(b []byte) {
	a.inUse.Add(-int64(len(b)))
	metrics.AllocatorBytesFreedTotal.Add(float64(len(b)))
	metrics.AllocatorAllocationsActive.Dec()
	a.Allocator.Free(b)
}

// InUse returns bytes allocated and not yet freed.
func (a *TrackingAllocator) InUse() int64 { return a.inUse.Load() }

// Peak returns the high-water mark of InUse.
func (a *TrackingAllocator) Peak() int64 { return a.peak.Load() }

func (a *TrackingAllocator) grow(delta int64) {
	now := a.inUse.Add(delta)
	for {
		p := a.peak.Load()
		if now <= p || a.peak.CompareAndSwap(p, now) {
			return
		}
	}
}

var _ memory.Allocator = (*TrackingAllocator)(nil)
