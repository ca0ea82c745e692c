package pack

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrWidth is returned for block widths that are not a positive power of two
// or not a multiple of the element size.
var ErrWidth = errors.New("invalid block width")

// Scalar is the set of element types a block can hold.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Width is a validated block byte width for element type T.
type Width[T Scalar] struct {
	bytes int
	lanes int
}

// NewWidth validates blockBytes for T.
func NewWidth[T Scalar](blockBytes int) (Width[T], error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if blockBytes <= 0 || blockBytes&(blockBytes-1) != 0 {
		return Width[T]{}, fmt.Errorf("%w: %d bytes is not a positive power of two", ErrWidth, blockBytes)
	}
	if blockBytes%size != 0 {
		return Width[T]{}, fmt.Errorf("%w: %d bytes is not a multiple of element size %d", ErrWidth, blockBytes, size)
	}
	return Width[T]{bytes: blockBytes, lanes: blockBytes / size}, nil
}

// MustWidth is NewWidth that panics on an invalid width.
func MustWidth[T Scalar](blockBytes int) Width[T] {
	w, err := NewWidth[T](blockBytes)
	if err != nil {
		panic(err)
	}
	return w
}

// Bytes returns the block size in bytes, which is also its alignment.
func (w Width[T]) Bytes() int { return w.bytes }

// Lanes returns the number of elements per block.
func (w Width[T]) Lanes() int { return w.lanes }

// Chunks returns ceil(m / Lanes()), the number of blocks needed for m features.
func (w Width[T]) Chunks(m int) int {
	if m <= 0 || w.lanes == 0 {
		return 0
	}
	return (m + w.lanes - 1) / w.lanes
}

// Take returns how many lanes of chunk kk hold real feature positions when
// there are m features in total. Only the last chunk can be partial.
func (w Width[T]) Take(kk, m int) int {
	rem := m - kk*w.lanes
	switch {
	case rem <= 0:
		return 0
	case rem > w.lanes:
		return w.lanes
	default:
		return rem
	}
}

// Column maps lane p of chunk kk to its feature column.
func (w Width[T]) Column(kk, p int) int {
	return kk*w.lanes + p
}

func (w Width[T]) String() string {
	return fmt.Sprintf("%dB/%d lanes", w.bytes, w.lanes)
}
