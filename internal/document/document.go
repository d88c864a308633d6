// Package document holds the editable transcript document and the sink
// that lands finished transcription jobs in it.
//
// The document is a rune-addressed text buffer with command-based undo.
// Every mutation is an invertible command pushed onto the undo stack; a
// fresh mutation clears the redo stack. Offsets count runes, not bytes,
// so multi-byte text undoes cleanly.
package document

import (
	"fmt"
	"os"
	"sync"
)

// command is an invertible document mutation.
type command interface {
	apply(d *Document)
	revert(d *Document)
}

// insertOp inserts text at a rune offset.
type insertOp struct {
	at   int
	text []rune
}

func (op insertOp) apply(d *Document) {
	d.text = append(d.text[:op.at:op.at], append(op.text, d.text[op.at:]...)...)
	d.caret = op.at + len(op.text)
}

func (op insertOp) revert(d *Document) {
	d.text = append(d.text[:op.at:op.at], d.text[op.at+len(op.text):]...)
	d.caret = op.at
}

// deleteOp removes a rune range, remembering the removed text for revert.
type deleteOp struct {
	at      int
	removed []rune
}

func (op deleteOp) apply(d *Document) {
	d.text = append(d.text[:op.at:op.at], d.text[op.at+len(op.removed):]...)
	d.caret = op.at
}

func (op deleteOp) revert(d *Document) {
	d.text = append(d.text[:op.at:op.at], append(op.removed, d.text[op.at:]...)...)
	d.caret = op.at + len(op.removed)
}

// Document is an editable text buffer with undo/redo and a caret. Safe for
// concurrent use, though mutations are typically serialized through a
// Dispatcher so they interleave deterministically with job deliveries.
type Document struct {
	mu    sync.Mutex
	text  []rune
	caret int
	undo  []command
	redo  []command
	dirty bool
}

// New returns an empty document with the caret at offset 0.
func New() *Document {
	return &Document{}
}

// Text returns the full document content.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.text)
}

// Len returns the document length in runes.
func (d *Document) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.text)
}

// Caret returns the current caret offset in runes.
func (d *Document) Caret() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.caret
}

// SetCaret moves the caret, clamping to the document bounds.
func (d *Document) SetCaret(at int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.caret = d.clamp(at)
}

// Dirty reports whether the document changed since the last Save or Load.
func (d *Document) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// InsertAt inserts text at the given rune offset, clamped to the document
// bounds, and moves the caret to the end of the insertion.
func (d *Document) InsertAt(at int, text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.push(insertOp{at: d.clamp(at), text: []rune(text)})
}

// Insert inserts text at the caret.
func (d *Document) Insert(text string) {
	if text == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.push(insertOp{at: d.caret, text: []rune(text)})
}

// DeleteRange removes the runes in [from, to), clamped to the document
// bounds. Removing an empty range is a no-op.
func (d *Document) DeleteRange(from, to int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	from = d.clamp(from)
	to = d.clamp(to)
	if to <= from {
		return
	}
	removed := make([]rune, to-from)
	copy(removed, d.text[from:to])
	d.push(deleteOp{at: from, removed: removed})
}

// Undo reverts the most recent mutation. Returns false if there is
// nothing to undo.
func (d *Document) Undo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.undo)
	if n == 0 {
		return false
	}
	op := d.undo[n-1]
	d.undo = d.undo[:n-1]
	op.revert(d)
	d.redo = append(d.redo, op)
	d.dirty = true
	return true
}

// Redo reapplies the most recently undone mutation. Returns false if
// there is nothing to redo.
func (d *Document) Redo() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.redo)
	if n == 0 {
		return false
	}
	op := d.redo[n-1]
	d.redo = d.redo[:n-1]
	op.apply(d)
	d.undo = append(d.undo, op)
	d.dirty = true
	return true
}

// Save writes the document to path and clears the dirty flag.
func (d *Document) Save(path string) error {
	d.mu.Lock()
	text := string(d.text)
	d.mu.Unlock()

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	d.mu.Lock()
	d.dirty = false
	d.mu.Unlock()
	return nil
}

// Load replaces the document content from path, resetting undo history
// and placing the caret at the end.
func (d *Document) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = []rune(string(data))
	d.caret = len(d.text)
	d.undo = nil
	d.redo = nil
	d.dirty = false
	return nil
}

// push applies a fresh mutation, recording it for undo and invalidating
// any redo history.
func (d *Document) push(op command) {
	op.apply(d)
	d.undo = append(d.undo, op)
	d.redo = nil
	d.dirty = true
}

// clamp bounds a rune offset to [0, len(text)]. Must hold d.mu.
func (d *Document) clamp(at int) int {
	if at < 0 {
		return 0
	}
	if at > len(d.text) {
		return len(d.text)
	}
	return at
}
