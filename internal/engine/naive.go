package engine

import (
	"github.com/23skdu/catdist/internal/dataset"
	"github.com/23skdu/catdist/internal/kernel"
	"github.com/23skdu/catdist/internal/matrix"
	"github.com/23skdu/catdist/internal/pack"
)

// Naive fills the upper triangle by iterating every feature of every pair
// directly. Missing-vs-missing adds nothing, equal present codes add their
// column count and anything else adds penalty.
func Naive[T pack.Scalar](d *dataset.Dataset[T], counts kernel.Counter[T], penalty uint64) *matrix.Matrix {
	n, m := d.N(), d.M()
	mat := matrix.New(n)
	for i := 0; i < n; i++ {
		row := mat.Row(i)
		for j := i; j < n; j++ {
			var dist uint64
			for k := 0; k < m; k++ {
				a, b := d.At(i, k), d.At(j, k)
				switch {
				case !a.Valid && !b.Valid:
				case a == b:
					dist += counts.Count(k, a.Value)
				default:
					dist += penalty
				}
			}
			row[j-i] = dist
		}
	}
	return mat
}
