package reader

import (
	"testing"
)

func TestChunkText(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\n\nThird paragraph."
	chunks := ChunkText(text, ChunkOptions{})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := []string{"First paragraph.", "Second paragraph.", "Third paragraph."}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Text, want[i])
		}
	}
}

func TestChunkTextDropsEmptyParagraphs(t *testing.T) {
	chunks := ChunkText("\n\nOne\n\n \n\n\n\nTwo\n\n", ChunkOptions{})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "One" || chunks[1].Text != "Two" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}
}

func TestChunkTextEmpty(t *testing.T) {
	if chunks := ChunkText("", ChunkOptions{}); len(chunks) != 0 {
		t.Errorf("expected no chunks, got %+v", chunks)
	}
}

func TestJoinReconstructsCleanedText(t *testing.T) {
	inputs := []string{
		"One.\n\nTwo.\n\nThree.",
		"A single paragraph with no breaks",
		"wrapped\nlines\n\n\n\nand hyphen-\nated words\n\n“quotes”",
	}

	for _, in := range inputs {
		cleaned := Clean(in)
		got := Join(ChunkText(cleaned, ChunkOptions{}))
		if got != cleaned {
			t.Errorf("Join(ChunkText(%q)) = %q", cleaned, got)
		}
	}
}

func TestChunkTextMinLength(t *testing.T) {
	text := "Title\n\nBy Someone\n\nThis paragraph is comfortably longer than the minimum length.\n\nEnd"
	chunks := ChunkText(text, ChunkOptions{MinLength: 50})

	want := []string{
		"Title By Someone",
		"This paragraph is comfortably longer than the minimum length.",
		"End",
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %+v", len(want), len(chunks), chunks)
	}
	for i, c := range chunks {
		if c.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, c.Text, want[i])
		}
	}
}

func TestWords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"simple sentence", "Hello world this is a test", []string{"Hello", "world", "this", "is", "a", "test"}},
		{"multiple spaces", "Hello    world     test", []string{"Hello", "world", "test"}},
		{"newlines and tabs", "Hello\nworld\ttest", []string{"Hello", "world", "test"}},
		{"empty string", "", []string{}},
		{"punctuation", "Hello, world! How are you?", []string{"Hello,", "world!", "How", "are", "you?"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Words(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("Words() length = %v, want %v", len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("Words()[%d] = %v, want %v", i, result[i], tt.expected[i])
				}
			}
		})
	}
}
