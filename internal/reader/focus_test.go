package reader

import "testing"

func TestFocusPoint(t *testing.T) {
	tests := []struct {
		name     string
		word     string
		expected int
	}{
		{"empty string", "", 0},
		{"single char", "a", 0},
		{"two chars", "ab", 1},
		{"five chars", "abcde", 1},
		{"six chars", "abcdef", 2},
		{"nine chars", "abcdefghi", 3},
		{"twelve chars", "abcdefghijkl", 4},
		{"multibyte", "équilibré", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FocusPoint(tt.word); got != tt.expected {
				t.Errorf("FocusPoint(%q) = %d, want %d", tt.word, got, tt.expected)
			}
		})
	}
}
