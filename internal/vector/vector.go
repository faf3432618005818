// Package vector implements the real-vector abstraction OWL-QN operates
// over: a dense, contiguous realization and a sparse, key-ordered one,
// sharing the same algebraic contract so the optimizer engine never needs
// to know which one it was handed.
package vector

import (
	"fmt"
	"math"
)

// Vector is the capability set the OWL-QN engine relies on. Dense and
// Sparse both implement it; a handful of mixed-shape free functions below
// round out the evaluator's hot path (sparse instance features against a
// dense model).
type Vector interface {
	// Size returns the vector's declared dimension for Dense, or the
	// number of stored (non-zero) entries for Sparse.
	Size() int

	// At returns the value at index i, 0 if absent.
	At(i int) float64

	// Set stores value at index i. For Sparse, value == 0 erases the
	// entry; no explicit zero is ever retained.
	Set(i int, value float64)

	// Each calls fn once per stored entry in ascending index order.
	Each(fn func(i int, v float64))

	// Clear removes all stored values (Sparse) or zeroes all slots (Dense).
	Clear()
}

// DimensionMismatch is an invariant-violation error: the caller handed two
// dense vectors with different declared sizes to a binary op.
type DimensionMismatch struct {
	A, B int
}

func (e *DimensionMismatch) Error() string {
	return fmt.Sprintf("vector: dimension mismatch: %d vs %d", e.A, e.B)
}

// DotProduct computes sum_i u[i]*v[i]. Dispatches to the concrete pair's
// fast path; the default path walks Each on u and looks values up in v.
func DotProduct(u, v Vector) float64 {
	switch a := u.(type) {
	case *Dense:
		if b, ok := v.(*Dense); ok {
			return dotDenseDense(a, b)
		}
		if b, ok := v.(*Sparse); ok {
			return dotSparseDense(b, a)
		}
	case *Sparse:
		if b, ok := v.(*Sparse); ok {
			return dotSparseSparse(a, b)
		}
		if b, ok := v.(*Dense); ok {
			return dotSparseDense(a, b)
		}
	}
	// Generic fallback for foreign implementations of Vector.
	var sum float64
	u.Each(func(i int, uv float64) { sum += uv * v.At(i) })
	return sum
}

// AddScaled computes u <- u + c*v, preserving u's container type and the
// sparse no-explicit-zero invariant.
func AddScaled(u Vector, v Vector, c float64) {
	switch dst := u.(type) {
	case *Dense:
		if src, ok := v.(*Dense); ok {
			addScaledDenseDense(dst, src, c)
			return
		}
		if src, ok := v.(*Sparse); ok {
			addScaledDenseSparse(dst, src, c)
			return
		}
	case *Sparse:
		if src, ok := v.(*Sparse); ok {
			addScaledSparseSparse(dst, src, c)
			return
		}
	}
	v.Each(func(i int, vv float64) { u.Set(i, u.At(i)+c*vv) })
}

// AddScaledInto computes w <- u + c*v. w is cleared first.
func AddScaledInto(w, u, v Vector, c float64) {
	w.Clear()
	switch dst := w.(type) {
	case *Dense:
		if a, ok := u.(*Dense); ok {
			if b, ok := v.(*Dense); ok {
				addScaledIntoDenseDense(dst, a, b, c)
				return
			}
		}
	case *Sparse:
		if a, ok := u.(*Sparse); ok {
			if b, ok := v.(*Sparse); ok {
				addScaledIntoSparseSparse(dst, a, b, c)
				return
			}
		}
	}
	u.Each(func(i int, uv float64) { w.Set(i, uv) })
	v.Each(func(i int, vv float64) { w.Set(i, w.At(i)+c*vv) })
}

// ScaleInto computes u <- c*v. u is cleared first (sparse) or assumed to
// already match v's size (dense).
func ScaleInto(u, v Vector, c float64) {
	u.Clear()
	v.Each(func(i int, vv float64) { u.Set(i, vv*c) })
}

// Scale computes v <- v*c in place.
func Scale(v Vector, c float64) {
	switch d := v.(type) {
	case *Dense:
		for i := range d.values {
			d.values[i] *= c
		}
	case *Sparse:
		for k, val := range d.entries {
			d.entries[k] = val * c
		}
	default:
		var idx []int
		v.Each(func(i int, _ float64) { idx = append(idx, i) })
		for _, i := range idx {
			v.Set(i, v.At(i)*c)
		}
	}
}

// Norm2 returns the Euclidean norm of v.
func Norm2(v Vector) float64 {
	return math.Sqrt(DotProduct(v, v))
}

// NewLike allocates a fresh, zeroed vector with the same container shape
// as v: a same-sized Dense for a Dense v, an empty Sparse for a Sparse v.
// Used when the engine needs a scratch buffer matching the working
// vectors' shape (e.g. a new s/y history slot in Shift).
func NewLike(v Vector) Vector {
	switch t := v.(type) {
	case *Dense:
		return NewDense(t.Size())
	case *Sparse:
		return NewSparse()
	default:
		return NewSparse()
	}
}

// IsEmptySparse reports whether v is a Sparse vector with no stored
// entries — the on-disk/in-memory sentinel for a NULL history slot.
func IsEmptySparse(v Vector) bool {
	s, ok := v.(*Sparse)
	return ok && s.Size() == 0
}
