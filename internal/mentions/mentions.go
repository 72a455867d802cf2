// Package mentions finds @handle tokens in free text.
package mentions

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const MaxHandleLength = 30

var handlePattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// Segment is a run of plain text or a single mention. Handle is empty for
// plain text.
type Segment struct {
	Text   string `json:"text"`
	Handle string `json:"handle,omitempty"`
}

// IsMention reports whether the segment is an @handle.
func (s Segment) IsMention() bool {
	return s.Handle != ""
}

// Href is the profile link for a mention segment.
func (s Segment) Href() string {
	if !s.IsMention() {
		return ""
	}
	return ProfilePath(s.Handle)
}

// ProfilePath is the internal profile page for handle.
func ProfilePath(handle string) string {
	return "/profile/" + strings.ToLower(handle)
}

// Parse splits text into plain and mention segments in order. An @ only
// starts a mention at the beginning of the text or after a character that
// cannot be part of a word, so email addresses are left alone. Handles
// longer than MaxHandleLength are treated as plain text.
func Parse(text string) []Segment {
	var out []Segment
	last := 0
	for _, m := range handlePattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		handle := text[m[2]:m[3]]
		if !atBoundary(text, start) || len(handle) > MaxHandleLength {
			continue
		}
		if start > last {
			out = append(out, Segment{Text: text[last:start]})
		}
		out = append(out, Segment{Text: text[start:end], Handle: handle})
		last = end
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// Handles returns the distinct handles mentioned in text, lowercased, in
// order of first appearance.
func Handles(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range Parse(text) {
		if !s.IsMention() {
			continue
		}
		h := strings.ToLower(s.Handle)
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

func atBoundary(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}
