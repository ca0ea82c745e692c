package memory

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/23skdu/catdist/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Common errors
var (
	ErrAlignment  = errors.New("alignment must be a positive power of two")
	ErrMisaligned = errors.New("allocation start is not aligned")
	ErrNegative   = errors.New("allocation size is negative")
	ErrReleased   = errors.New("arena already released")
)

// DefaultSlabSize is the slab size used when none is given (4MB).
const DefaultSlabSize = 4 * 1024 * 1024

// SlabArena hands out zeroed byte ranges whose start address is a multiple of
// a fixed alignment. Slabs are obtained from an Arrow memory.Allocator and are
// returned to it by Release; every slice handed out is invalid after that.
//
// Allocation is serialized by a mutex. Slices returned by Alloc never overlap
// and may be written concurrently by different goroutines.
type SlabArena struct {
	alloc    memory.Allocator
	align    int
	slabSize int

	mu        sync.Mutex
	slabs     [][]byte
	current   []byte
	offset    int
	allocated int64
	released  bool
}

// NewSlabArena creates an arena whose allocations start at multiples of align.
// A nil alloc selects memory.DefaultAllocator; slabSize <= 0 selects DefaultSlabSize.
func NewSlabArena(alloc memory.Allocator, align, slabSize int) (*SlabArena, error) {
	if align <= 0 || align&(align-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrAlignment, align)
	}
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if slabSize <= 0 {
		slabSize = DefaultSlabSize
	}
	if slabSize < align {
		slabSize = align
	}
	return &SlabArena{
		alloc:    alloc,
		align:    align,
		slabSize: slabSize,
	}, nil
}

// Align returns the alignment every allocation honors.
func (a *SlabArena) Align() int { return a.align }

// Allocated returns the bytes handed out so far, including tail padding.
func (a *SlabArena) Allocated() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// Slabs returns the number of slabs obtained from the backing allocator.
func (a *SlabArena) Slabs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slabs)
}

// Alloc reserves size zeroed bytes. The returned slice has len size, and its
// capacity is size rounded up to the alignment so that consecutive
// allocations stay aligned. A zero size yields a nil slice.
func (a *SlabArena) Alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrNegative
	}
	if size == 0 {
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil, ErrReleased
	}

	rounded := alignUp(size, a.align)
	start, ok := a.fit(rounded)
	if !ok {
		a.grow(rounded)
		if start, ok = a.fit(rounded); !ok {
			return nil, fmt.Errorf("%w: slab of %d bytes cannot hold %d", ErrMisaligned, len(a.current), rounded)
		}
	}

	buf := a.current[start : start+size : start+rounded]
	if uintptr(unsafe.Pointer(unsafe.SliceData(buf)))%uintptr(a.align) != 0 {
		return nil, fmt.Errorf("%w: align %d", ErrMisaligned, a.align)
	}
	clear(buf)

	a.offset = start + rounded
	a.allocated += int64(rounded)
	metrics.ArenaAllocatedBytes.Add(float64(rounded))
	return buf, nil
}

// fit returns the aligned start offset of a size-byte range in the current slab.
func (a *SlabArena) fit(size int) (int, bool) {
	if len(a.current) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(a.current)))
	start := int(alignUpPtr(base+uintptr(a.offset), uintptr(a.align)) - base)
	if start+size > len(a.current) {
		return 0, false
	}
	return start, true
}

// grow requests a slab large enough to hold minSize bytes at any base address.
func (a *SlabArena) grow(minSize int) {
	size := a.slabSize
	if minSize > size {
		size = minSize
	}
	slab := a.alloc.Allocate(size + a.align)
	a.slabs = append(a.slabs, slab)
	a.current = slab
	a.offset = 0
	metrics.ArenaSlabsTotal.Inc()
}

// Release returns every slab to the backing allocator. It is idempotent.
func (a *SlabArena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return
	}
	for _, s := range a.slabs {
		a.alloc.Free(s)
	}
	metrics.ArenaAllocatedBytes.Sub(float64(a.allocated))
	a.slabs = nil
	a.current = nil
	a.offset = 0
	a.allocated = 0
	a.released = true
}

// AllocSlice allocates count zeroed elements of T starting at an aligned address.
// T must not contain pointers; the arena memory is not scanned by the GC.
func AllocSlice[T any](a *SlabArena, count int) ([]T, error) {
	if count < 0 {
		return nil, ErrNegative
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	buf, err := a.Alloc(count * elemSize)
	if err != nil || buf == nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(buf))), count), nil
}

// IsAligned reports whether the first element of s starts at a multiple of align.
// Empty slices are reported as aligned.
func IsAligned[T any](s []T, align int) bool {
	if len(s) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))%uintptr(align) == 0
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func alignUpPtr(p, align uintptr) uintptr {
	return (p + align - 1) &^ (align - 1)
}
