// Package kernel computes per-chunk contributions to the frequency-weighted
// categorical dissimilarity.
//
// For every feature where at least one sample has a value, equal values add
// the global count of that value in the feature column and any other
// combination adds a fixed penalty, the total sample count. Features missing
// from both samples add nothing.
//
// Self and Cross treat the zero lane value as missing. SelfMasked and
// CrossMasked read presence from a pack.Mask instead, so zero can be a code.
package kernel

import "github.com/23skdu/catdist/internal/pack"

// Counter returns the number of samples holding code v in feature column k.
type Counter[T pack.Scalar] interface {
	Count(k int, v T) uint64
}

// Self returns the diagonal contribution of block b for chunk kk: the sum of
// counts of its non-sentinel values over the first take lanes.
func Self[T pack.Scalar](b pack.Block[T], counts Counter[T], kk, take int) uint64 {
	lanes := b.Lanes()
	base := kk * len(lanes)
	take = min(take, len(lanes))

	var zero T
	var acc uint64
	for p, v := range lanes[:take] {
		if v != zero {
			acc += counts.Count(base+p, v)
		}
	}
	return acc
}

// Cross returns the contribution of the pair (a, b) for chunk kk over the
// first take lanes. Lanes where both values are the sentinel are skipped.
func Cross[T pack.Scalar](a, b pack.Block[T], counts Counter[T], kk, take int, penalty uint64) uint64 {
	la, lb := a.Lanes(), b.Lanes()
	base := kk * len(la)
	take = min(take, len(la), len(lb))
	la, lb = la[:take], lb[:take]

	var zero T
	var acc uint64
	for p, x := range la {
		y := lb[p]
		if x == zero && y == zero {
			continue
		}
		if x == y {
			acc += counts.Count(base+p, x)
		} else {
			acc += penalty
		}
	}
	return acc
}

// SelfMasked is Self with presence taken from mask.
func SelfMasked[T pack.Scalar](b pack.Block[T], mask pack.Mask, counts Counter[T], kk, take int) uint64 {
	lanes := b.Lanes()
	base := kk * len(lanes)
	take = min(take, len(lanes))

	var acc uint64
	for p, v := range lanes[:take] {
		if mask.Has(p) {
			acc += counts.Count(base+p, v)
		}
	}
	return acc
}

// CrossMasked is Cross with presence taken from the masks.
func CrossMasked[T pack.Scalar](a pack.Block[T], ma pack.Mask, b pack.Block[T], mb pack.Mask, counts Counter[T], kk, take int, penalty uint64) uint64 {
	la, lb := a.Lanes(), b.Lanes()
	base := kk * len(la)
	take = min(take, len(la), len(lb))

	var acc uint64
	for p := 0; p < take; p++ {
		pa, pb := ma.Has(p), mb.Has(p)
		switch {
		case !pa && !pb:
		case pa && pb && la[p] == lb[p]:
			acc += counts.Count(base+p, la[p])
		default:
			acc += penalty
		}
	}
	return acc
}
