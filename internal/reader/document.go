// Package reader turns uploaded documents into cleaned, paragraph-sized chunks
// ready to be spoken.
package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document is an opened file: its cleaned text and the chunks played back.
type Document struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Format Format  `json:"format"`
	Text   string  `json:"-"`
	Chunks []Chunk `json:"chunks"`

	// Sections are the headings of formats with a table of contents.
	Sections []Section `json:"sections,omitempty"`
}

var idReplacer = strings.NewReplacer(" ", "_", ".", "_")

// DocumentID derives the persistence key of a document from its filename.
// Different files with the same name share a key.
func DocumentID(name string) string {
	return idReplacer.Replace(filepath.Base(name))
}

// Open extracts, cleans and chunks data. The format is inferred from name.
func Open(name string, data []byte, opts ChunkOptions) (*Document, error) {
	format, err := FormatFromFilename(name)
	if err != nil {
		return nil, err
	}

	raw, err := Extract(data, format)
	if err != nil {
		return nil, err
	}

	text := Clean(raw)
	chunks := ChunkText(text, opts)
	if len(chunks) == 0 {
		return nil, &ExtractionError{Format: format, Err: ErrNoText}
	}

	return &Document{
		ID:       DocumentID(name),
		Name:     filepath.Base(name),
		Format:   format,
		Text:     text,
		Chunks:   chunks,
		Sections: outline(data, format, chunks),
	}, nil
}

// OpenFile reads path and opens it as a document.
func OpenFile(path string, opts ChunkOptions) (*Document, error) {
	if _, err := FormatFromFilename(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	return Open(path, data, opts)
}

// ChunkCount returns the number of chunks.
func (d *Document) ChunkCount() int {
	return len(d.Chunks)
}

// WordCount returns the number of words across all chunks.
func (d *Document) WordCount() int {
	n := 0
	for _, c := range d.Chunks {
		n += len(Words(c.Text))
	}
	return n
}

// Chunk returns the chunk at index i.
func (d *Document) Chunk(i int) (Chunk, bool) {
	if i < 0 || i >= len(d.Chunks) {
		return Chunk{}, false
	}
	return d.Chunks[i], true
}
