package pack

import "iter"

// Opt is an optional categorical code.
type Opt[T Scalar] struct {
	Value T
	Valid bool
}

// Some returns a present value.
func Some[T Scalar](v T) Opt[T] {
	return Opt[T]{Value: v, Valid: true}
}

// None returns a missing value.
func None[T Scalar]() Opt[T] {
	return Opt[T]{}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

// OrZero returns the value, or the zero sentinel when missing.
func (o Opt[T]) OrZero() T {
	if !o.Valid {
		var zero T
		return zero
	}
	return o.Value
}

// Values yields every element of s as present.
func Values[T Scalar](s []T) iter.Seq[Opt[T]] {
	return func(yield func(Opt[T]) bool) {
		for _, v := range s {
			if !yield(Some(v)) {
				return
			}
		}
	}
}

// Options yields the elements of s unchanged.
func Options[T Scalar](s []Opt[T]) iter.Seq[Opt[T]] {
	return func(yield func(Opt[T]) bool) {
		for _, o := range s {
			if !yield(o) {
				return
			}
		}
	}
}

// Fill is the single normalization rule for every block source: the first
// min(len(dst), len(src)) lanes receive the source values in order (missing
// values become zero), the remaining lanes are zeroed, and source values past
// len(dst) are ignored. It returns the number of source values consumed.
func Fill[T Scalar](dst []T, src iter.Seq[Opt[T]]) int {
	n := 0
	if len(dst) > 0 && src != nil {
		for o := range src {
			dst[n] = o.OrZero()
			n++
			if n == len(dst) {
				break
			}
		}
	}
	clear(dst[n:])
	return n
}
