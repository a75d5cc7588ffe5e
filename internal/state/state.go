// Package state persists per-document playback positions and preferences.
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidPosition rejects a negative or non-finite position.
var ErrInvalidPosition = errors.New("invalid position")

// Position is where playback of a document stopped. Offset is seconds or a word
// index within the chunk, depending on the speech backend.
type Position struct {
	ChunkIndex int       `json:"chunk"`
	Offset     float64   `json:"offset"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Validate checks the bounds every stored position must satisfy.
func (p Position) Validate() error {
	if p.ChunkIndex < 0 {
		return fmt.Errorf("%w: chunk index %d is negative", ErrInvalidPosition, p.ChunkIndex)
	}
	if p.Offset < 0 || math.IsNaN(p.Offset) || math.IsInf(p.Offset, 0) {
		return fmt.Errorf("%w: offset %v", ErrInvalidPosition, p.Offset)
	}
	return nil
}

// normalized returns p with UpdatedAt in UTC, which is how every store
// hands it back.
func (p Position) normalized() Position {
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p
}

// Preferences are the per-document voice and speed choices.
type Preferences struct {
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// Store keeps one position and one preferences record per document ID.
// Load returns the zero Position when nothing was saved.
type Store interface {
	Save(ctx context.Context, docID string, pos Position) error
	Load(ctx context.Context, docID string) (Position, error)
	Clear(ctx context.Context, docID string) error
	SavePreferences(ctx context.Context, docID string, prefs Preferences) error
	LoadPreferences(ctx context.Context, docID string) (Preferences, error)
	Close() error
}
