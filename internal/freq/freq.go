// Package freq builds per-column occurrence counts of categorical codes.
package freq

import (
	"fmt"
	"maps"

	"github.com/23skdu/catdist/internal/dataset"
	"github.com/23skdu/catdist/internal/pack"
)

// denseLimit bounds the code domain for which a column is stored as a slice
// indexed by code instead of a map.
const denseLimit = 1 << 12

// denseBudget is the number of dense cells always allowed. Larger dense tables
// must stay within denseFactor cells per observed value.
const (
	denseBudget = 1 << 16
	denseFactor = 4
)

// Table maps, per feature column, each observed code to the number of samples
// holding it. Missing values are not counted. A Table is read-only after Build
// and safe for concurrent use.
type Table[T pack.Scalar] struct {
	dense  [][]uint64
	sparse []map[T]uint64
}

// Build scans d once.
func Build[T pack.Scalar](d *dataset.Dataset[T]) *Table[T] {
	m := d.M()
	sparse := make([]map[T]uint64, m)
	for k := range sparse {
		sparse[k] = make(map[T]uint64)
	}
	var maxCode, observed uint64
	for i := 0; i < d.N(); i++ {
		for k, o := range d.Row(i) {
			if !o.Valid {
				continue
			}
			sparse[k][o.Value]++
			observed++
			maxCode = max(maxCode, uint64(o.Value))
		}
	}

	t := &Table[T]{sparse: sparse}
	if useDense(m, maxCode, observed) {
		t.dense = make([][]uint64, m)
		for k, col := range sparse {
			t.dense[k] = make([]uint64, maxCode+1)
			for v, c := range col {
				t.dense[k][uint64(v)] = c
			}
		}
	}
	return t
}

// useDense reports whether an m x (maxCode+1) table is small enough in absolute
// terms or relative to the number of observed values.
func useDense(m int, maxCode, observed uint64) bool {
	if maxCode >= denseLimit {
		return false
	}
	cells := uint64(m) * (maxCode + 1)
	return cells <= max(denseBudget, denseFactor*observed)
}

// Columns returns the number of feature columns.
func (t *Table[T]) Columns() int { return len(t.sparse) }

// Count returns how many samples hold code v in column k; unseen codes count zero.
func (t *Table[T]) Count(k int, v T) uint64 {
	if t.dense != nil {
		col := t.dense[k]
		if uint64(v) < uint64(len(col)) {
			return col[uint64(v)]
		}
		return 0
	}
	return t.sparse[k][v]
}

// Column returns a copy of the counts of column k.
func (t *Table[T]) Column(k int) map[T]uint64 {
	return maps.Clone(t.sparse[k])
}

// Total returns the sum of counts in column k, which equals the number of
// non-missing entries in that column.
func (t *Table[T]) Total(k int) uint64 {
	var sum uint64
	for _, c := range t.sparse[k] {
		sum += c
	}
	return sum
}

// Check verifies that every column total equals the number of samples the
// dataset reports present in that column.
func (t *Table[T]) Check(d *dataset.Dataset[T]) error {
	if len(t.sparse) != d.M() {
		return fmt.Errorf("table has %d columns, dataset %d", len(t.sparse), d.M())
	}
	for k := range t.sparse {
		if total, present := t.Total(k), d.PresentCount(k); total != present {
			return fmt.Errorf("column %d: counts sum to %d, %d values present", k, total, present)
		}
	}
	return nil
}

// Dense reports whether lookups use the code-indexed fast path.
func (t *Table[T]) Dense() bool { return t.dense != nil }
