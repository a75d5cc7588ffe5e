package reader

import "strings"

// Heading is one table of contents entry as the format declares it.
// Level 0 is the top level.
type Heading struct {
	Title string
	Level int
}

// Section is a heading located in the chunk list, so playback can jump to it.
type Section struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Chunk int    `json:"chunk"`
}

// Outliner is an optional interface for formats that carry a table of
// contents.
type Outliner interface {
	Outline(data []byte) ([]Heading, error)
}

// outline returns the sections of data, or nil when the format has none.
func outline(data []byte, f Format, chunks []Chunk) []Section {
	o, ok := registry[f].(Outliner)
	if !ok {
		return nil
	}
	headings, err := outlineSafely(o, data)
	if err != nil || len(headings) == 0 {
		return nil
	}
	return locateSections(headings, chunks)
}

func outlineSafely(o Outliner, data []byte) (h []Heading, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &parserPanic{value: r}
		}
	}()
	return o.Outline(data)
}

// locateSections finds each heading in order as the first chunk at or after the
// previous match whose text starts with the heading. Headings that cannot be
// found are dropped.
func locateSections(headings []Heading, chunks []Chunk) []Section {
	var out []Section
	from := 0
	for _, h := range headings {
		title := normalizeTitle(h.Title)
		if title == "" {
			continue
		}
		for i := from; i < len(chunks); i++ {
			if strings.HasPrefix(normalizeTitle(chunks[i].Text), title) {
				out = append(out, Section{Title: strings.TrimSpace(h.Title), Level: h.Level, Chunk: i})
				from = i
				break
			}
		}
	}
	return out
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(Clean(s)), " "))
}

// SectionAt returns the index of the last section starting at or before chunk,
// or -1 when chunk precedes every section.
func (d *Document) SectionAt(chunk int) int {
	at := -1
	for i, s := range d.Sections {
		if s.Chunk > chunk {
			break
		}
		at = i
	}
	return at
}

// NextSection returns the chunk of the first section after chunk.
func (d *Document) NextSection(chunk int) (int, bool) {
	for _, s := range d.Sections {
		if s.Chunk > chunk {
			return s.Chunk, true
		}
	}
	return 0, false
}

// PreviousSection returns the chunk of the last section before chunk.
func (d *Document) PreviousSection(chunk int) (int, bool) {
	for i := len(d.Sections) - 1; i >= 0; i-- {
		if d.Sections[i].Chunk < chunk {
			return d.Sections[i].Chunk, true
		}
	}
	return 0, false
}
