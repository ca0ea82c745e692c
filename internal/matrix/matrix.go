// Package matrix holds the n×n distance accumulator.
//
// Only the upper triangle, diagonal included, is ever written. The formula is
// symmetric, so At(j, i) reads the stored At(i, j) for i < j.
package matrix

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrOverflow is returned by CheckCapacity when a distance could exceed uint64.
var ErrOverflow = errors.New("distance may overflow uint64")

// Matrix is a row-major n×n array of uint64 accumulators.
//
// Rows are write-disjoint: accumulating into row i touches only Row(i), so
// goroutines that own distinct rows need no locking.
type Matrix struct {
	n    int
	data []uint64
}

// New returns a zeroed n×n matrix.
func New(n int) *Matrix {
	return &Matrix{n: n, data: make([]uint64, n*n)}
}

// N returns the number of samples.
func (m *Matrix) N() int { return m.n }

// Add accumulates v into entry (i, j); i must not exceed j.
func (m *Matrix) Add(i, j int, v uint64) {
	if i > j {
		panic(fmt.Sprintf("matrix: add below the diagonal (%d,%d)", i, j))
	}
	m.data[i*m.n+j] += v
}

// At returns the distance between samples i and j in either order.
func (m *Matrix) At(i, j int) uint64 {
	if i > j {
		i, j = j, i
	}
	return m.data[i*m.n+j]
}

// Row returns the stored entries of row i, indexed by j - i for j >= i.
func (m *Matrix) Row(i int) []uint64 {
	return m.data[i*m.n+i : (i+1)*m.n]
}

// Equal reports whether both matrices have the same upper triangle.
func (m *Matrix) Equal(o *Matrix) bool {
	_, _, ok := m.Diff(o)
	return ok
}

// Diff returns the first upper-triangle entry that differs, or ok=true if none does.
func (m *Matrix) Diff(o *Matrix) (i, j int, ok bool) {
	if m.n != o.n {
		return -1, -1, false
	}
	for i := 0; i < m.n; i++ {
		for j := i; j < m.n; j++ {
			if m.At(i, j) != o.At(i, j) {
				return i, j, false
			}
		}
	}
	return 0, 0, true
}

// CheckCapacity verifies that every entry of a matrix over n samples and m
// features fits in uint64. A feature adds at most n to any entry, so m·n bounds
// both diagonal and off-diagonal distances.
func CheckCapacity(n, m int) error {
	if n < 0 || m < 0 {
		return fmt.Errorf("negative shape %dx%d", n, m)
	}
	if hi, _ := bits.Mul64(uint64(n), uint64(m)); hi != 0 {
		return fmt.Errorf("%w: %d samples x %d features", ErrOverflow, n, m)
	}
	return nil
}
