// Package speech turns chunk text into audible speech and reports playback
// progress while it does.
//
// A Backend speaks one chunk per call. Pausing is cancelling the context passed
// to Speak; resuming is calling Speak again with the saved offset.
package speech

import (
	"context"
	"fmt"
)

// Unit is what a Progress offset counts.
type Unit int

const (
	// UnitSeconds offsets are elapsed audio time within the chunk.
	UnitSeconds Unit = iota
	// UnitWords offsets are the index of the word being spoken.
	UnitWords
)

func (u Unit) String() string {
	if u == UnitWords {
		return "words"
	}
	return "seconds"
}

// Request asks a backend to speak chunk Index from Offset.
type Request struct {
	Index  int
	Text   string
	Offset float64
	Speed  float64
	Voice  string
}

// Progress is emitted while a chunk is spoken. The last value on a channel has
// Done set when the chunk finished, or Err set when it failed. A channel closed
// without either means the context was cancelled.
type Progress struct {
	Index  int
	Offset float64
	Done   bool
	Err    error
}

// Backend speaks chunks.
type Backend interface {
	Name() string
	Unit() Unit
	Speak(ctx context.Context, req Request) (<-chan Progress, error)
	Close() error
}

// SynthesisError reports a chunk the speech service could not render.
type SynthesisError struct {
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis of chunk %d failed: %v", e.Index, e.Err)
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// send delivers p unless ctx is done first.
func send(ctx context.Context, ch chan<- Progress, p Progress) bool {
	select {
	case ch <- p:
		return true
	case <-ctx.Done():
		return false
	}
}
