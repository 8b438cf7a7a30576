// Package subtitle keeps the live caption state of an interview.
package subtitle

import (
	"sync"

	"github.com/javaboys/hunty/interview/domain/entities"
)

// DefaultVisibleLines is how many final lines a status display shows
const DefaultVisibleLines = 4

// FinalSink receives every finalized line
type FinalSink func(line entities.TranscriptLine)

// Buffer holds the current partial caption and the history of final lines.
type Buffer struct {
	mu      sync.RWMutex
	partial string
	lines   []entities.TranscriptLine
	sink    FinalSink
}

// NewBuffer creates an empty buffer. sink may be nil.
func NewBuffer(sink FinalSink) *Buffer {
	return &Buffer{sink: sink}
}

// SetPartial replaces the in-progress caption
func (b *Buffer) SetPartial(text string) {
	b.mu.Lock()
	b.partial = text
	b.mu.Unlock()
}

// AddFinal appends a final line and clears the partial caption
func (b *Buffer) AddFinal(line entities.TranscriptLine) {
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.partial = ""
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		sink(line)
	}
}

// Partial returns the in-progress caption
func (b *Buffer) Partial() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.partial
}

// Recent returns up to n of the latest final lines, oldest first
func (b *Buffer) Recent(n int) []entities.TranscriptLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(b.lines) - n
	if start < 0 {
		start = 0
	}
	return append([]entities.TranscriptLine(nil), b.lines[start:]...)
}

// All returns every final line
func (b *Buffer) All() []entities.TranscriptLine {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]entities.TranscriptLine(nil), b.lines...)
}

// Reset clears captions for a new session
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.partial = ""
	b.lines = nil
	b.mu.Unlock()
}
