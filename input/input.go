// Package input generates the byte stream a terminal application
// reads in response to user events.
//
// The generator is the one shared structure between the UI thread
// (which feeds key and paste events) and the terminal thread (which
// drains the pending buffer into the pty). Unlike the atlas, which is
// single-owner, the generator therefore carries its own mutex; every
// acquisition is scoped so the lock is released on all exit paths,
// panics included.
package input

import (
	"sync"
	"unicode/utf8"
)

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModControl
)

// Generator accumulates input bytes for the terminal thread to drain.
// Safe for concurrent use.
type Generator struct {
	mu             sync.Mutex
	pending        []byte
	bracketedPaste bool
}

// Locked runs fn with the generator's lock held. The lock is released
// when fn returns or panics.
func (g *Generator) Locked(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn()
}

// SetBracketedPaste toggles bracketed paste mode (DECSET 2004).
func (g *Generator) SetBracketedPaste(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bracketedPaste = enabled
}

// Queue appends raw bytes to the pending buffer.
func (g *Generator) Queue(p []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, p...)
}

// KeyPress queues the byte sequence for a printable rune with the
// given modifiers: control folds letters onto C0 controls, alt
// prefixes ESC.
func (g *Generator) KeyPress(ch rune, mods Modifier) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if mods&ModAlt != 0 {
		g.pending = append(g.pending, 0x1B)
	}
	if mods&ModControl != 0 && ch < 0x80 {
		g.pending = append(g.pending, byte(ch)&0x1F)
		return
	}
	g.pending = utf8.AppendRune(g.pending, ch)
}

// Paste queues pasted text, wrapped in the bracketed paste guards when
// that mode is enabled.
func (g *Generator) Paste(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.bracketedPaste {
		g.pending = append(g.pending, "\x1b[200~"...)
		g.pending = append(g.pending, text...)
		g.pending = append(g.pending, "\x1b[201~"...)
		return
	}
	g.pending = append(g.pending, text...)
}

// TakePending returns the accumulated bytes and resets the buffer.
// The returned slice is owned by the caller.
func (g *Generator) TakePending() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.pending
	g.pending = nil
	return out
}

// PendingLen returns the number of queued bytes.
func (g *Generator) PendingLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}
