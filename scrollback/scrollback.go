// Package scrollback keeps a bounded history of terminal lines.
//
// The history is a ring buffer with a separately tracked logical
// capacity: it grows line by line until the configured maximum, then
// rotates and overwrites the oldest line in place. Scrolling a page up
// or down is a rotation, never a copy.
package scrollback

import "github.com/rhcher/contour/ring"

// Buffer is a bounded line history. Element type T is the screen
// model's line representation. Buffer is single-owner.
type Buffer[T any] struct {
	lines    *ring.Ring[T]
	used     int
	maxLines int
}

// New creates a history bounded to maxLines lines. It panics if
// maxLines is not positive.
func New[T any](maxLines int) *Buffer[T] {
	if maxLines <= 0 {
		panic("scrollback: maxLines must be positive")
	}
	return &Buffer[T]{
		lines:    ring.New[T](0),
		maxLines: maxLines,
	}
}

// Len returns the number of stored lines.
func (b *Buffer[T]) Len() int { return b.used }

// MaxLines returns the bound.
func (b *Buffer[T]) MaxLines() int { return b.maxLines }

// Push appends line as the newest history entry. Below the bound the
// storage grows; at the bound the oldest line is overwritten in place
// via a rotation.
func (b *Buffer[T]) Push(line T) {
	if b.used < b.maxLines {
		b.lines.PushBack(line)
		b.used++
		return
	}
	b.lines.RotateLeft(1)
	*b.lines.Back() = line
}

// At returns a pointer to line i, 0 addressing the oldest stored line.
// The pointer is invalidated when the line is overwritten and by any
// call that may move the storage: Push below the bound, Page, Resize,
// and Clear.
func (b *Buffer[T]) At(i int) *T {
	if i < 0 || i >= b.used {
		panic("scrollback: line index out of range")
	}
	return b.lines.At(i)
}

// Newest returns a pointer to the most recent line. It panics on an
// empty buffer.
func (b *Buffer[T]) Newest() *T {
	if b.used == 0 {
		panic("scrollback: empty buffer")
	}
	return b.lines.Back()
}

// Page returns count lines starting at line start as a contiguous
// slice, oldest first.
func (b *Buffer[T]) Page(start, count int) []T {
	if start < 0 || count < 0 || start+count > b.used {
		panic("scrollback: page out of range")
	}
	return b.lines.Span(start, count)
}

// Resize changes the bound. Shrinking below the current line count
// drops the oldest lines.
func (b *Buffer[T]) Resize(maxLines int) {
	if maxLines <= 0 {
		panic("scrollback: maxLines must be positive")
	}
	if b.used > maxLines {
		drop := b.used - maxLines
		b.lines.RotateLeft(drop)
		b.lines.Resize(maxLines)
		b.used = maxLines
	}
	b.maxLines = maxLines
}

// Clear drops all lines.
func (b *Buffer[T]) Clear() {
	b.lines.Clear()
	b.used = 0
}
