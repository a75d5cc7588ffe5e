package reader

import (
	"strings"
	"unicode"
)

// ParagraphSeparator separates paragraphs in cleaned text.
const ParagraphSeparator = "\n\n"

// punctuationReplacer normalizes line endings, typographic quotes and dashes.
var punctuationReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"“", `"`, "”", `"`, "„", `"`,
	"‘", "'", "’", "'",
	"—", " - ", "–", " - ", "‒", " - ",
)

// Clean normalizes extracted text for speech. It joins words broken across line
// wraps, collapses whitespace inside paragraphs to single spaces and separates
// paragraphs with exactly one blank line. Clean is idempotent.
func Clean(raw string) string {
	text := punctuationReplacer.Replace(raw)
	text = dehyphenate(text)
	return normalizeParagraphs(text)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// dehyphenate removes a hyphen plus the line break after it when a word
// continues on the next line: "exam-\nple" becomes "example".
func dehyphenate(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '-' && i > 0 && isWordRune(runes[i-1]) {
			j := i + 1
			for j < len(runes) && runes[j] != '\n' && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == '\n' {
				k := j
				for k < len(runes) && unicode.IsSpace(runes[k]) {
					k++
				}
				if k < len(runes) && isWordRune(runes[k]) {
					i = k - 1
					continue
				}
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeParagraphs treats any whitespace run holding two or more newlines as
// a paragraph boundary and every other whitespace run as a single space.
func normalizeParagraphs(s string) string {
	var paragraphs []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			paragraphs = append(paragraphs, cur.String())
		}
		cur.Reset()
	}

	inSpace := false
	newlines := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			if r == '\n' {
				newlines++
			}
			inSpace = true
			continue
		}
		if inSpace {
			if newlines >= 2 {
				flush()
			} else if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			inSpace = false
			newlines = 0
		}
		cur.WriteRune(r)
	}
	flush()

	return strings.Join(paragraphs, ParagraphSeparator)
}
