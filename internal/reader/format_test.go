package reader

import (
	"errors"
	"testing"
)

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"book.pdf", FormatPDF},
		{"Book.EPUB", FormatEPUB},
		{"report.docx", FormatDOCX},
		{"notes.txt", FormatText},
		{"README.md", FormatMarkdown},
		{"guide.markdown", FormatMarkdown},
		{"/tmp/dir.with.dots/file.txt", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromFilename(tt.name)
			if err != nil {
				t.Fatalf("FormatFromFilename: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFromFilenameUnsupported(t *testing.T) {
	for _, name := range []string{"legacy.doc", "sheet.xlsx", "noextension"} {
		t.Run(name, func(t *testing.T) {
			_, err := FormatFromFilename(name)
			var unsupported *UnsupportedFormatError
			if !errors.As(err, &unsupported) {
				t.Fatalf("expected UnsupportedFormatError, got %v", err)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		content := "Hello world this is a test."
		got, err := Extract([]byte(content), FormatText)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got != content {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("latin-1 fallback", func(t *testing.T) {
		got, err := Extract([]byte{'c', 'a', 'f', 0xE9}, FormatText)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got != "café" {
			t.Errorf("got %q, want %q", got, "café")
		}
	})

	t.Run("byte order mark", func(t *testing.T) {
		got, err := Extract([]byte("\xEF\xBB\xBFhello"), FormatText)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if got != "hello" {
			t.Errorf("got %q, want %q", got, "hello")
		}
	})

	t.Run("legacy word tag", func(t *testing.T) {
		_, err := Extract([]byte("anything"), Format("doc"))
		var unsupported *UnsupportedFormatError
		if !errors.As(err, &unsupported) {
			t.Fatalf("expected UnsupportedFormatError, got %v", err)
		}
		if unsupported.Format != "doc" {
			t.Errorf("Format = %q, want doc", unsupported.Format)
		}
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := Extract([]byte("  \n\n  "), FormatText)
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Fatalf("expected ExtractionError, got %v", err)
		}
		if !errors.Is(err, ErrNoText) {
			t.Errorf("expected ErrNoText, got %v", err)
		}
	})

	t.Run("corrupt pdf", func(t *testing.T) {
		_, err := Extract([]byte("%PDF-1.4 truncated"), FormatPDF)
		var extractErr *ExtractionError
		if !errors.As(err, &extractErr) {
			t.Fatalf("expected ExtractionError, got %v", err)
		}
	})
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 5 {
		t.Errorf("expected 5 formats, got %v", formats)
	}
	for _, f := range formats {
		if f == "EPUB (.epub)" {
			return
		}
	}
	t.Errorf("EPUB not registered: %v", formats)
}
