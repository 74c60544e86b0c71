package sections

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Slugger builds unique heading anchors for one document.
type Slugger struct {
	seen  map[string]int
	lower cases.Caser
}

// NewSlugger returns a slugger with no anchors taken.
func NewSlugger() *Slugger {
	return &Slugger{
		seen:  make(map[string]int),
		lower: cases.Lower(language.Und),
	}
}

// Slug normalizes text with NFKC, lower-cases it, keeps letters, digits
// and underscores, and collapses runs of anything else to one hyphen.
// Repeats get the first free suffix of -1, -2, ... and an empty result
// becomes "section".
func (s *Slugger) Slug(text string) string {
	base := s.base(text)

	n, seen := s.seen[base]
	if !seen {
		s.seen[base] = 1
		return base
	}
	for ; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := s.seen[candidate]; !taken {
			s.seen[base] = n + 1
			s.seen[candidate] = 1
			return candidate
		}
	}
}

// Take marks an explicit anchor as used so later slugs avoid it.
func (s *Slugger) Take(id string) {
	if _, seen := s.seen[id]; !seen {
		s.seen[id] = 1
	}
}

func (s *Slugger) base(text string) string {
	folded := s.lower.String(norm.NFKC.String(text))

	var b strings.Builder
	b.Grow(len(folded))
	hyphen := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			hyphen = false
		default:
			if !hyphen && b.Len() > 0 {
				b.WriteByte('-')
				hyphen = true
			}
		}
	}
	if base := strings.TrimSuffix(b.String(), "-"); base != "" {
		return base
	}
	return "section"
}
