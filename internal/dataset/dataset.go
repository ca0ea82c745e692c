// Package dataset holds the immutable input of a distance computation:
// n samples, each an ordered sequence of m optional categorical codes.
package dataset

import (
	"iter"
	"slices"

	"github.com/23skdu/catdist/internal/pack"
	"github.com/RoaringBitmap/roaring/v2"
)

// Dataset is n samples of m optional codes. Rows shorter than the longest row
// are treated as missing past their end. A Dataset is safe for concurrent reads.
type Dataset[T pack.Scalar] struct {
	rows    [][]pack.Opt[T]
	m       int
	present []*roaring.Bitmap
}

// New copies rows into a Dataset. m is the length of the longest row.
func New[T pack.Scalar](rows [][]pack.Opt[T]) *Dataset[T] {
	m := 0
	for _, r := range rows {
		m = max(m, len(r))
	}
	d := &Dataset[T]{
		rows: make([][]pack.Opt[T], len(rows)),
		m:    m,
	}
	for i, r := range rows {
		d.rows[i] = slices.Clone(r)
	}
	d.index()
	return d
}

// FromValues builds a Dataset in which every value is present.
func FromValues[T pack.Scalar](rows [][]T) *Dataset[T] {
	opts := make([][]pack.Opt[T], len(rows))
	for i, r := range rows {
		opts[i] = make([]pack.Opt[T], len(r))
		for k, v := range r {
			opts[i][k] = pack.Some(v)
		}
	}
	return adopt(opts)
}

// adopt takes ownership of rows without copying.
func adopt[T pack.Scalar](rows [][]pack.Opt[T]) *Dataset[T] {
	m := 0
	for _, r := range rows {
		m = max(m, len(r))
	}
	d := &Dataset[T]{rows: rows, m: m}
	d.index()
	return d
}

func (d *Dataset[T]) index() {
	d.present = make([]*roaring.Bitmap, d.m)
	for k := range d.present {
		d.present[k] = roaring.New()
	}
	for i, r := range d.rows {
		for k, o := range r {
			if o.Valid {
				d.present[k].Add(uint32(i))
			}
		}
	}
	for _, bm := range d.present {
		bm.RunOptimize()
	}
}

// N returns the number of samples.
func (d *Dataset[T]) N() int { return len(d.rows) }

// M returns the number of feature columns.
func (d *Dataset[T]) M() int { return d.m }

// Row returns sample i. The slice may be shorter than M and must not be modified.
func (d *Dataset[T]) Row(i int) []pack.Opt[T] { return d.rows[i] }

// At returns feature k of sample i; positions past the end of a short row are missing.
func (d *Dataset[T]) At(i, k int) pack.Opt[T] {
	r := d.rows[i]
	if k >= len(r) {
		return pack.None[T]()
	}
	return r[k]
}

// Present returns a copy of the set of samples that have a value in column k.
func (d *Dataset[T]) Present(k int) *roaring.Bitmap {
	return d.present[k].Clone()
}

// PresentSamples yields, in ascending order, the samples with a value in column k.
func (d *Dataset[T]) PresentSamples(k int) iter.Seq[int] {
	return func(yield func(int) bool) {
		it := d.present[k].Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}

// PresentCount returns the number of samples with a value in column k.
func (d *Dataset[T]) PresentCount(k int) uint64 {
	return d.present[k].GetCardinality()
}

// SentinelCollisions counts present values equal to the zero sentinel. Such
// values are indistinguishable from missing once packed without presence masks.
func (d *Dataset[T]) SentinelCollisions() int {
	var zero T
	n := 0
	for _, r := range d.rows {
		for _, o := range r {
			if o.Valid && o.Value == zero {
				n++
			}
		}
	}
	return n
}
