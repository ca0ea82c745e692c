package pack

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"unsafe"

	"github.com/23skdu/catdist/internal/memory"
)

// ErrArenaAlign is returned when an arena's alignment is weaker than the block width.
var ErrArenaAlign = errors.New("arena alignment is not a multiple of the block width")

// Block is one fixed-width, aligned group of lanes. The zero Block has no lanes.
type Block[T Scalar] struct {
	lanes []T
}

// Len returns the lane count, which always equals Width.Lanes().
func (b Block[T]) Len() int { return len(b.lanes) }

// At returns lane p.
func (b Block[T]) At(p int) T { return b.lanes[p] }

// Lanes exposes the backing lanes for kernels. Callers must not modify them.
func (b Block[T]) Lanes() []T { return b.lanes }

// Values returns a copy of the lanes.
func (b Block[T]) Values() []T { return slices.Clone(b.lanes) }

// Options returns the lanes as optionals, mapping the zero sentinel to None.
func (b Block[T]) Options() []Opt[T] {
	var zero T
	out := make([]Opt[T], len(b.lanes))
	for i, v := range b.lanes {
		if v != zero {
			out[i] = Some(v)
		}
	}
	return out
}

// Addr returns the address of the first lane, or 0 for the zero Block.
func (b Block[T]) Addr() uintptr {
	if len(b.lanes) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.lanes)))
}

// Equal reports whether both blocks hold the same lanes.
func (b Block[T]) Equal(o Block[T]) bool {
	return slices.Equal(b.lanes, o.lanes)
}

// Region is contiguous aligned storage for a fixed number of blocks of one width.
// Block i starts i*Width.Bytes() bytes after the region start, so every block
// inherits the region's alignment.
type Region[T Scalar] struct {
	width Width[T]
	data  []T
	count int
}

// NewRegion allocates room for count blocks from arena. The arena's alignment
// must be a multiple of the block width.
func NewRegion[T Scalar](arena *memory.SlabArena, w Width[T], count int) (*Region[T], error) {
	if w.lanes == 0 {
		return nil, fmt.Errorf("%w: zero width", ErrWidth)
	}
	if arena.Align()%w.bytes != 0 {
		return nil, fmt.Errorf("%w: arena %d, width %d", ErrArenaAlign, arena.Align(), w.bytes)
	}
	data, err := memory.AllocSlice[T](arena, count*w.lanes)
	if err != nil {
		return nil, fmt.Errorf("allocate %d blocks of %s: %w", count, w, err)
	}
	if !memory.IsAligned(data, w.bytes) {
		return nil, fmt.Errorf("%w: region not aligned to %d bytes", memory.ErrMisaligned, w.bytes)
	}
	return &Region[T]{width: w, data: data, count: count}, nil
}

// Width returns the block width of the region.
func (r *Region[T]) Width() Width[T] { return r.width }

// Len returns the number of blocks in the region.
func (r *Region[T]) Len() int { return r.count }

// Block returns block i.
func (r *Region[T]) Block(i int) Block[T] {
	if i < 0 || i >= r.count {
		panic(fmt.Sprintf("pack: block index %d out of range [0,%d)", i, r.count))
	}
	lo := i * r.width.lanes
	return Block[T]{lanes: r.data[lo : lo+r.width.lanes : lo+r.width.lanes]}
}

// Pack normalizes src into block i with Fill and returns it.
func (r *Region[T]) Pack(i int, src iter.Seq[Opt[T]]) Block[T] {
	b := r.Block(i)
	Fill(b.lanes, src)
	return b
}

// Pack allocates a single block from arena and fills it from src.
func Pack[T Scalar](arena *memory.SlabArena, w Width[T], src iter.Seq[Opt[T]]) (Block[T], error) {
	r, err := NewRegion(arena, w, 1)
	if err != nil {
		return Block[T]{}, err
	}
	return r.Pack(0, src), nil
}

// Split packs s into ceil(len(s)/Lanes()) consecutive blocks, the last one
// padded. An empty s yields no blocks.
func Split[T Scalar](arena *memory.SlabArena, w Width[T], s []Opt[T]) ([]Block[T], error) {
	k := w.Chunks(len(s))
	if k == 0 {
		return nil, nil
	}
	r, err := NewRegion(arena, w, k)
	if err != nil {
		return nil, err
	}
	out := make([]Block[T], k)
	for kk := range out {
		lo := kk * w.lanes
		hi := min(lo+w.lanes, len(s))
		out[kk] = r.Pack(kk, Options(s[lo:hi]))
	}
	return out, nil
}
