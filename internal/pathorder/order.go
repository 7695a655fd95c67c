// Package pathorder implements the segment-by-segment, locale-aware path
// ordering the scanner and merger both depend on: a shorter path is always
// less than any extension of it, so a directory always sorts immediately
// before its own subtree.
package pathorder

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator orders forward-slash relative paths segment by segment using
// locale-aware collation. The zero value uses root collation (language.Und),
// matching the teacher's locale-agnostic sorting of directory listings.
type Comparator struct {
	col *collate.Collator
}

// New builds a Comparator for the given locale. An empty tag falls back to
// root collation.
func New(locale language.Tag) *Comparator {
	return &Comparator{col: collate.New(locale)}
}

// Default is the root-collation comparator used when no locale is
// configured.
func Default() *Comparator {
	return New(language.Und)
}

// Normalize converts a possibly platform-specific path to the internal
// forward-slash form used throughout the pipeline.
func Normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}

// segments splits a normalized relative path into its slash segments,
// dropping empty leading/trailing segments from a leading/trailing slash.
func segments(p string) []string {
	p = Normalize(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Compare returns -1, 0 or 1 as a is less than, equal to, or greater than b
// under the segment-wise ordering ≺: compare segment by segment with the
// locale collator; a path that is a strict prefix of the other (one ran out
// of segments first) sorts before it. This is what guarantees a directory
// entry is immediately followed by its own subtree in scan order.
func (c *Comparator) Compare(a, b string) int {
	col := c.col
	if col == nil {
		col = collate.New(language.Und)
	}
	as, bs := segments(a), segments(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if d := col.CompareString(as[i], bs[i]); d != 0 {
			return d
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func (c *Comparator) Less(a, b string) bool {
	return c.Compare(a, b) < 0
}
