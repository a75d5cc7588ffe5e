package reader

import "unicode/utf8"

// FocusPoint returns the rune index of the optimal recognition point of a
// word, where the eye settles fastest. Players highlight it in the word being
// spoken.
func FocusPoint(word string) int {
	length := utf8.RuneCountInString(word)
	if length <= 1 {
		return 0
	} else if length <= 5 {
		return 1
	}
	return length / 3
}
