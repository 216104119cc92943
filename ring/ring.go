// Package ring implements a rotation-based ring buffer.
//
// A Ring is a bounded sequence with a movable origin: logical index i
// lives at physical index (zero + i) mod N. Rotating the ring is an
// O(1) adjustment of the origin, which is what makes it suitable for
// terminal scrollback, where "scrolling" a page is a rotation rather
// than a copy of every line.
package ring

import "iter"

// Ring is a cyclic sequence over a slice with a movable origin.
//
// Element accessors return pointers into the underlying storage; they
// stay valid across Rotate and are invalidated by Resize, Clear, and
// Rezero. Ring is not safe for concurrent use.
type Ring[T any] struct {
	storage []T
	zero    int
}

// New creates a ring of n zero-valued elements.
func New[T any](n int) *Ring[T] {
	return &Ring[T]{storage: make([]T, n)}
}

// FromSlice creates a ring that takes ownership of s as its storage.
func FromSlice[T any](s []T) *Ring[T] {
	return &Ring[T]{storage: s}
}

// Len returns the number of elements.
func (r *Ring[T]) Len() int { return len(r.storage) }

// Zero returns the physical index of the logical origin.
func (r *Ring[T]) Zero() int { return r.zero }

// Storage returns the underlying slice in physical order.
func (r *Ring[T]) Storage() []T { return r.storage }

// physical maps a logical index to its physical position. Negative
// logical indexes address from the back, as in r.At(-1) == r.Back().
func (r *Ring[T]) physical(i int) int {
	n := len(r.storage)
	return ((r.zero+i)%n + n) % n
}

// At returns a pointer to the element at logical index i.
func (r *Ring[T]) At(i int) *T {
	return &r.storage[r.physical(i)]
}

// Front returns a pointer to the element at the logical origin.
func (r *Ring[T]) Front() *T { return r.At(0) }

// Back returns a pointer to the last logical element.
func (r *Ring[T]) Back() *T { return r.At(len(r.storage) - 1) }

// Rotate moves the origin: a positive count rotates right (the last
// count elements become the first), a negative count rotates left.
// Counts of any magnitude are reduced modulo Len.
func (r *Ring[T]) Rotate(count int) {
	n := len(r.storage)
	if n == 0 {
		return
	}
	r.zero = ((r.zero-count)%n + n) % n
}

// RotateLeft rotates left by count: the first count elements move to
// the back.
func (r *Ring[T]) RotateLeft(count int) {
	if count < 0 {
		panic("ring: negative RotateLeft count")
	}
	r.Rotate(-count)
}

// RotateRight rotates right by count: the last count elements move to
// the front.
func (r *Ring[T]) RotateRight(count int) {
	if count < 0 {
		panic("ring: negative RotateRight count")
	}
	r.Rotate(count)
}

// Unrotate resets the origin to physical index 0 without moving any
// element. The logical order changes accordingly.
func (r *Ring[T]) Unrotate() { r.zero = 0 }

// Rezero physically rotates the storage so the logical origin lands on
// physical index 0. Element order is preserved; pointers previously
// obtained from At/Front/Back are invalidated.
//
// Rezero costs O(n). Callers that only rotate never pay it; it exists
// for consumers that need the storage contiguous in logical order.
func (r *Ring[T]) Rezero() {
	if r.zero == 0 {
		return
	}
	// Three-reversal in-place rotation: no scratch storage.
	reverse(r.storage[:r.zero])
	reverse(r.storage[r.zero:])
	reverse(r.storage)
	r.zero = 0
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// PushBack appends v as the new logical back, growing the ring by one.
// The ring is rezeroed first if rotated, so this invalidates pointers.
func (r *Ring[T]) PushBack(v T) {
	r.Rezero()
	r.storage = append(r.storage, v)
}

// PopFront removes and returns the logical front element, shrinking
// the ring by one. It panics on an empty ring.
func (r *Ring[T]) PopFront() T {
	if len(r.storage) == 0 {
		panic("ring: PopFront on empty ring")
	}
	r.Rezero()
	v := r.storage[0]
	var zero T
	r.storage[0] = zero
	r.storage = r.storage[1:]
	return v
}

// Resize grows or shrinks the ring to n elements. The ring is rezeroed
// first; on growth the new elements are zero-valued at the back, on
// shrinkage the back is dropped.
func (r *Ring[T]) Resize(n int) {
	if n < 0 {
		panic("ring: negative Resize length")
	}
	r.Rezero()
	if n <= len(r.storage) {
		// Zero the dropped tail so element resources become
		// collectable.
		var zero T
		for i := n; i < len(r.storage); i++ {
			r.storage[i] = zero
		}
		r.storage = r.storage[:n]
		return
	}
	grown := make([]T, n)
	copy(grown, r.storage)
	r.storage = grown
}

// Clear drops all elements.
func (r *Ring[T]) Clear() {
	r.storage = r.storage[:0]
	r.zero = 0
}

// Span returns the count elements starting at logical index start as a
// contiguous slice. When the requested range wraps around the physical
// end of storage, the ring rezeroes first, so Span may invalidate
// previously obtained pointers.
func (r *Ring[T]) Span(start, count int) []T {
	if count == 0 {
		return nil
	}
	n := len(r.storage)
	if start < 0 || count < 0 || start+count > n {
		panic("ring: Span out of range")
	}
	from := r.physical(start)
	if from+count > n {
		r.Rezero()
		from = start
	}
	return r.storage[from : from+count]
}

// All iterates the elements in logical order, yielding each logical
// index and element. Rotation during iteration is not supported.
func (r *Ring[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < len(r.storage); i++ {
			if !yield(i, r.storage[r.physical(i)]) {
				return
			}
		}
	}
}

// Backward iterates the elements in reverse logical order.
func (r *Ring[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := len(r.storage) - 1; i >= 0; i-- {
			if !yield(i, r.storage[r.physical(i)]) {
				return
			}
		}
	}
}
