package reader

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// utf8BOM is stripped from the start of plain text files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextFormat implements Extractor for plain text files.
type TextFormat struct{}

func init() {
	Register(&TextFormat{})
}

func (f *TextFormat) Format() Format       { return FormatText }
func (f *TextFormat) Name() string         { return "Text" }
func (f *TextFormat) Extensions() []string { return []string{".txt", ".text"} }
func (f *TextFormat) Extract(data []byte) (string, error) {
	return decodeText(data)
}

// decodeText reads data as UTF-8, falling back to Latin-1 when it is not valid
// UTF-8. Latin-1 maps every byte, so the fallback never fails on content.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}
