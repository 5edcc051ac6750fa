// Package hiddenchars detects and normalizes invisible or typographically
// ambiguous Unicode code points: zero-width characters, bidi marks,
// non-breaking spaces, soft hyphens, curly quotes and similar.
package hiddenchars

import "strings"

// replacements maps each target code point to its substitution. An empty
// string deletes the code point. The table is read-only after init and is
// shared process-wide without locking. Keys are written as escapes: most of
// these characters are invisible, and a literal BOM is not even legal in Go
// source past the first byte.
var replacements = map[rune]string{
	'\u00A0': " ",   // no-break space
	'\u202F': " ",   // narrow no-break space
	'\u200B': "",    // zero width space
	'\u200C': "",    // zero width non-joiner
	'\u200D': "",    // zero width joiner
	'\u200E': "",    // left-to-right mark
	'\u200F': "",    // right-to-left mark
	'\u00AD': "",    // soft hyphen
	'\u2011': "-",   // non-breaking hyphen
	'\u2013': "-",   // en dash
	'\u2014': "-",   // em dash
	'\u2018': "'",   // left single quote
	'\u2019': "'",   // right single quote
	'\u201C': `"`,   // left double quote
	'\u201D': `"`,   // right double quote
	'\u2026': "...", // horizontal ellipsis
	'\uFEFF': "",    // byte order mark
}

// Scan counts every occurrence of a target code point in text. A code
// point appearing k times contributes k to the total.
func Scan(text string) int {
	count := 0
	for _, r := range text {
		if _, ok := replacements[r]; ok {
			count++
		}
	}
	return count
}

// Clean rewrites text with every target code point substituted. The input
// is walked exactly once into a fresh buffer, so a character produced by
// one substitution is never re-matched by another rule, and Clean is
// idempotent.
func Clean(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if repl, ok := replacements[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
