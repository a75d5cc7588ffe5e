package reader

import (
	"path/filepath"
	"sort"
	"strings"
)

// Format is the declared format tag of a document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatEPUB     Format = "epub"
	FormatDOCX     Format = "docx"
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
)

// Extractor turns the bytes of one document format into plain text.
type Extractor interface {
	Format() Format
	Name() string
	Extensions() []string
	Extract(data []byte) (string, error)
}

var registry = map[Format]Extractor{}

// Register adds an extractor to the registry, replacing any previous one for the
// same format.
func Register(e Extractor) {
	registry[e.Format()] = e
}

// FormatFromFilename infers the format tag from the file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range registry {
		for _, x := range e.Extensions() {
			if ext == x {
				return e.Format(), nil
			}
		}
	}
	tag := strings.TrimPrefix(ext, ".")
	if tag == "" {
		tag = name
	}
	return "", &UnsupportedFormatError{Format: tag}
}

// Extract returns the plain text of data, which is declared to be in format f.
// The result is never empty when err is nil.
func Extract(data []byte, f Format) (string, error) {
	e, ok := registry[f]
	if !ok {
		return "", &UnsupportedFormatError{Format: string(f)}
	}
	text, err := extractSafely(e, data)
	if err != nil {
		return "", &ExtractionError{Format: f, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &ExtractionError{Format: f, Err: ErrNoText}
	}
	return text, nil
}

// extractSafely converts parser panics on corrupt input into errors.
func extractSafely(e Extractor, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &parserPanic{value: r}
		}
	}()
	return e.Extract(data)
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, e := range registry {
		out = append(out, e.Name()+" ("+strings.Join(e.Extensions(), ", ")+")")
	}
	sort.Strings(out)
	return out
}

// SupportedExtensions returns every extension the registry accepts.
func SupportedExtensions() []string {
	var out []string
	for _, e := range registry {
		out = append(out, e.Extensions()...)
	}
	sort.Strings(out)
	return out
}
