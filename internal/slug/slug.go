// Package slug derives URL-safe identifiers from post titles and resolves
// collisions by probing numbered suffixes.
package slug

import (
	"strconv"
	"strings"

	gslug "github.com/gosimple/slug"
)

// Fallback is used when a title normalizes to an empty string (for example
// a title made only of punctuation).
const Fallback = "post"

// MaxBaseLength bounds the base slug so that numbered suffixes still fit
// the 255 character slug column.
const MaxBaseLength = 200

// Make normalizes title to its base slug: lowercase, hyphen separated,
// transliterated to ASCII.
func Make(title string) string {
	s := gslug.Make(title)
	if len(s) > MaxBaseLength {
		s = strings.TrimRight(s[:MaxBaseLength], "-_")
	}
	if s == "" {
		return Fallback
	}
	return s
}

// Candidate returns the n-th probe for base: base itself for n == 0,
// otherwise base-n.
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}

// Resolve returns the first candidate of base, base-1, base-2, ... for which
// taken reports false.  The result is only a best-effort choice; the
// store's unique index decides when two writers race for the same slug.
func Resolve(base string, taken func(string) bool) string {
	for n := 0; ; n++ {
		c := Candidate(base, n)
		if !taken(c) {
			return c
		}
	}
}
