// Package transcript turns raw per-chunk transcriptions into a clean,
// ordered transcript.
package transcript

import (
	"strings"
	"unicode"
)

// MaxOverlapProbe is the longest run of trailing characters of the
// previous segment that is looked for at the start of a new one.
const MaxOverlapProbe = 30

// Stitch normalizes raw engine text for one chunk and removes the leading
// words the engine re-recognized from the end of previous.
//
// The text is trimmed, capitalized and given terminal punctuation. Then the
// longest run of at most MaxOverlapProbe characters that both ends previous
// (ignoring its terminal punctuation) and starts the new text is stripped,
// compared case-insensitively and only on word boundaries. The remainder is
// capitalized again. ok is false when nothing is left to emit.
func Stitch(previous, raw string) (text string, ok bool) {
	text = normalize(raw)
	if text == "" {
		return "", false
	}

	if n := overlapLen(previous, text); n > 0 {
		rest := []rune(text)[n:]
		text = capitalize(strings.TrimLeftFunc(string(rest), isLeadingJunk))
	}

	if !hasWords(text) {
		return "", false
	}
	return text, true
}

// normalize trims text, capitalizes the first letter and ensures it ends in
// sentence-terminal punctuation.
func normalize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = capitalize(text)
	if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}
	return text
}

// overlapLen returns the number of leading runes of text duplicated from
// the end of previous, or 0.
func overlapLen(previous, text string) int {
	prev := foldRunes(strings.TrimRightFunc(strings.TrimSpace(previous), isTerminal))
	if len(prev) == 0 {
		return 0
	}
	cur := foldRunes(text)

	probe := min(MaxOverlapProbe, len(prev))
	for n := min(probe, len(cur)); n > 0; n-- {
		start := len(prev) - n
		if start > 0 && isWordRune(prev[start-1]) {
			continue // suffix begins mid-word
		}
		if n < len(cur) && isWordRune(cur[n]) {
			continue // prefix ends mid-word
		}
		if equalRunes(prev[start:], cur[:n]) {
			return n
		}
	}
	return 0
}

// foldRunes lowercases rune by rune so indexes line up with the input.
func foldRunes(s string) []rune {
	r := []rune(s)
	for i := range r {
		r[i] = unicode.ToLower(r[i])
	}
	return r
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func hasWords(s string) bool {
	return strings.IndexFunc(s, isWordRune) >= 0
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isLeadingJunk matches what may be left in front of the remainder after an
// overlap is cut: whitespace and clause punctuation.
func isLeadingJunk(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(",;:.!?-", r)
}
