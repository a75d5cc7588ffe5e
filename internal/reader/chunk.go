package reader

import (
	"regexp"
	"strings"
)

// Chunk is one paragraph of a document, the unit of playback.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// ChunkOptions tunes ChunkText.
type ChunkOptions struct {
	// MinLength merges paragraphs shorter than this many bytes into the
	// following paragraph. Zero keeps one chunk per paragraph.
	MinLength int
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits cleaned text into paragraph chunks in document order.
// Empty paragraphs are dropped.
func ChunkText(text string, opts ChunkOptions) []Chunk {
	var texts []string
	buffer := ""

	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if opts.MinLength <= 0 {
			texts = append(texts, p)
			continue
		}
		if len(buffer)+len(p) < opts.MinLength {
			buffer = strings.TrimSpace(buffer + " " + p)
			continue
		}
		if buffer != "" {
			texts = append(texts, buffer)
		}
		buffer = p
	}
	if buffer != "" {
		texts = append(texts, buffer)
	}

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t}
	}
	return chunks
}

// Join reassembles chunk texts with paragraph separators. For text produced by
// Clean and chunked without merging, Join(ChunkText(t)) == t.
func Join(chunks []Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, ParagraphSeparator)
}

// Words splits text into words.
func Words(text string) []string {
	return strings.Fields(text)
}
