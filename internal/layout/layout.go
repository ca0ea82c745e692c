// Package layout reorganizes a dataset into fixed-width packed blocks.
//
// A dataset of n samples and m features becomes K = ceil(m/C) chunks of C
// lanes per sample. In chunk-major order all n blocks of chunk kk are
// contiguous (block index kk*n + i), which is the order the all-pairs kernels
// traverse. Row-major order keeps the K blocks of one sample together
// (block index i*K + kk).
package layout

import (
	"fmt"

	"github.com/23skdu/catdist/internal/dataset"
	"github.com/23skdu/catdist/internal/memory"
	"github.com/23skdu/catdist/internal/pack"
	"github.com/bits-and-blooms/bitset"
)

// Order selects how blocks are arranged in memory.
type Order int

const (
	// ChunkMajor stores every sample's block for chunk kk before chunk kk+1.
	ChunkMajor Order = iota
	// RowMajor stores all chunks of sample i before sample i+1.
	RowMajor
)

func (o Order) String() string {
	switch o {
	case ChunkMajor:
		return "chunk-major"
	case RowMajor:
		return "row-major"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// Options controls Build.
type Options struct {
	Order Order
	// Presence records a bit per lane telling observed values apart from the
	// zero sentinel, for datasets in which zero is a real code.
	Presence bool
}

// Layout is an immutable set of packed blocks built from a dataset.
type Layout[T pack.Scalar] struct {
	width    pack.Width[T]
	order    Order
	samples  int
	features int
	chunks   int
	region   *pack.Region[T]
	present  *bitset.BitSet
}

// Build packs d into blocks of width w allocated from arena. The arena must
// outlive the layout.
func Build[T pack.Scalar](arena *memory.SlabArena, d *dataset.Dataset[T], w pack.Width[T], opts Options) (*Layout[T], error) {
	if opts.Order != ChunkMajor && opts.Order != RowMajor {
		return nil, fmt.Errorf("layout: unknown order %d", int(opts.Order))
	}
	n, m := d.N(), d.M()
	k := w.Chunks(m)

	region, err := pack.NewRegion(arena, w, n*k)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	l := &Layout[T]{
		width:    w,
		order:    opts.Order,
		samples:  n,
		features: m,
		chunks:   k,
		region:   region,
	}
	if opts.Presence {
		l.present = bitset.New(uint(n * k * w.Lanes()))
		l.markPresent(d)
	}

	switch l.order {
	case ChunkMajor:
		for kk := 0; kk < k; kk++ {
			for i := 0; i < n; i++ {
				l.pack(d, kk, i)
			}
		}
	case RowMajor:
		for i := 0; i < n; i++ {
			for kk := 0; kk < k; kk++ {
				l.pack(d, kk, i)
			}
		}
	}
	return l, nil
}

func (l *Layout[T]) pack(d *dataset.Dataset[T], kk, i int) {
	row := d.Row(i)
	lanes := l.width.Lanes()
	lo := kk * lanes
	var src []pack.Opt[T]
	if lo < len(row) {
		src = row[lo:min(lo+lanes, len(row))]
	}
	l.region.Pack(l.index(kk, i), pack.Options(src))
}

// markPresent sets the presence bit of every observed value, walking the
// dataset's per-column presence bitmaps.
func (l *Layout[T]) markPresent(d *dataset.Dataset[T]) {
	lanes := l.width.Lanes()
	for k := 0; k < l.features; k++ {
		kk, p := k/lanes, k%lanes
		for i := range d.PresentSamples(k) {
			l.present.Set(uint(l.index(kk, i)*lanes + p))
		}
	}
}

func (l *Layout[T]) index(kk, i int) int {
	if kk < 0 || kk >= l.chunks || i < 0 || i >= l.samples {
		panic(fmt.Sprintf("layout: block (%d,%d) out of range %dx%d", kk, i, l.chunks, l.samples))
	}
	if l.order == RowMajor {
		return i*l.chunks + kk
	}
	return kk*l.samples + i
}

// Block returns sample i's block for chunk kk.
func (l *Layout[T]) Block(kk, i int) pack.Block[T] {
	return l.region.Block(l.index(kk, i))
}

// Mask returns the presence mask of sample i's block for chunk kk. It is the
// zero Mask unless the layout was built with Options.Presence.
func (l *Layout[T]) Mask(kk, i int) pack.Mask {
	idx := l.index(kk, i)
	if l.present == nil {
		return pack.Mask{}
	}
	return pack.NewMask(l.present, uint(idx*l.width.Lanes()))
}

// Chunk returns the blocks of chunk kk for every sample, in sample order.
func (l *Layout[T]) Chunk(kk int) []pack.Block[T] {
	out := make([]pack.Block[T], l.samples)
	for i := range out {
		out[i] = l.Block(kk, i)
	}
	return out
}

// Take returns the number of real feature positions in chunk kk.
func (l *Layout[T]) Take(kk int) int { return l.width.Take(kk, l.features) }

// Chunks returns K, the number of chunks.
func (l *Layout[T]) Chunks() int { return l.chunks }

// Samples returns n.
func (l *Layout[T]) Samples() int { return l.samples }

// Features returns m.
func (l *Layout[T]) Features() int { return l.features }

// Width returns the block width.
func (l *Layout[T]) Width() pack.Width[T] { return l.width }

// Order returns the block arrangement.
func (l *Layout[T]) Order() Order { return l.order }

// HasPresence reports whether presence masks were recorded.
func (l *Layout[T]) HasPresence() bool { return l.present != nil }
