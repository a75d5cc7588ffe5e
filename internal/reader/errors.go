package reader

import (
	"errors"
	"fmt"
)

// ErrNoText is wrapped by ExtractionError when a document parses but holds no text.
var ErrNoText = errors.New("no text found")

// UnsupportedFormatError rejects a format tag no extractor handles, such as the
// legacy binary Word format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q (supported: pdf, epub, docx, txt, markdown)", e.Format)
}

// ExtractionError reports a malformed or empty document.
type ExtractionError struct {
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type parserPanic struct {
	value any
}

func (p *parserPanic) Error() string {
	return fmt.Sprintf("parser failed: %v", p.value)
}
