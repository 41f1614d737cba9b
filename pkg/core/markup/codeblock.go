// Package markup extracts fenced code blocks from assistant replies.
package markup

import (
	"regexp"
	"strings"
)

// Extraction order: a block tagged as HTML wins; otherwise the first fenced
// block of any kind. Only the first match is ever used.
var (
	htmlBlockRe = regexp.MustCompile("(?s)```html\\s*(.*?)```")
	anyBlockRe  = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_-]*\\n)?(.*?)```")
)

// ExtractCodeBlock returns the trimmed contents of the first fenced code
// block in text, preferring a block tagged as HTML. ok is false when the
// text contains no fenced block.
func ExtractCodeBlock(text string) (code string, ok bool) {
	if m := htmlBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := anyBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}
