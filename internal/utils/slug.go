package utils

import (
	"strings"
)

const maxSlugLength = 60

// Slugify lowercases s and reduces it to [a-z0-9-], collapsing every run of
// other characters into a single hyphen. The result is capped at 60 bytes
// and never starts or ends with a hyphen.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	out := b.String()
	if len(out) > maxSlugLength {
		out = out[:maxSlugLength]
	}
	return strings.TrimRight(out, "-")
}

// LocationSlug derives the slug a listing is filed under, e.g.
// ("Austin", "TX") -> "austin-tx".
func LocationSlug(city, state string) string {
	return Slugify(city + " " + state)
}
