// Package sections maps source lines to the document section containing
// them. The index is built once per document and answers containment
// queries with a binary search.
package sections

import (
	"fmt"
	"sort"
)

// Section is an inclusive line range.
type Section struct {
	Start uint32 `json:"start_line" yaml:"start_line"`
	End   uint32 `json:"end_line" yaml:"end_line"`
	ID    string `json:"id" yaml:"id"`
}

// Index holds sections sorted ascending by Start with no overlap.
type Index struct {
	sections []Section
}

// New validates and stores sections. The input must already be sorted and
// non-overlapping; New copies it.
func New(sections []Section) (*Index, error) {
	out := make([]Section, len(sections))
	copy(out, sections)

	for i, s := range out {
		if s.End < s.Start {
			return nil, fmt.Errorf("section %q: end line %d before start line %d", s.ID, s.End, s.Start)
		}
		if i > 0 && s.Start <= out[i-1].End {
			return nil, fmt.Errorf("section %q starting at line %d overlaps or precedes %q ending at line %d",
				s.ID, s.Start, out[i-1].ID, out[i-1].End)
		}
	}

	return &Index{sections: out}, nil
}

// FromHeadings builds sections from heading start lines. Each section runs
// until the line before the next heading; the last one ends at lastLine.
// starts must be strictly increasing.
func FromHeadings(starts []uint32, ids []string, lastLine uint32) (*Index, error) {
	if len(starts) != len(ids) {
		return nil, fmt.Errorf("got %d heading lines but %d ids", len(starts), len(ids))
	}

	secs := make([]Section, 0, len(starts))
	for i, start := range starts {
		end := lastLine
		if i+1 < len(starts) {
			if starts[i+1] <= start {
				return nil, fmt.Errorf("heading lines not increasing at %d", i+1)
			}
			end = starts[i+1] - 1
		}
		if end < start {
			end = start
		}
		secs = append(secs, Section{Start: start, End: end, ID: ids[i]})
	}
	return New(secs)
}

// SectionOf returns the ID of the section containing line.
func (ix *Index) SectionOf(line uint32) (string, bool) {
	if ix == nil || len(ix.sections) == 0 {
		return "", false
	}
	// first section starting after line; the candidate is the one before it
	i := sort.Search(len(ix.sections), func(i int) bool {
		return ix.sections[i].Start > line
	})
	if i == 0 {
		return "", false
	}
	s := ix.sections[i-1]
	if line > s.End {
		return "", false
	}
	return s.ID, true
}

// Len returns the number of sections.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.sections)
}

// All returns a copy of the sections.
func (ix *Index) All() []Section {
	if ix == nil {
		return nil
	}
	out := make([]Section, len(ix.sections))
	copy(out, ix.sections)
	return out
}
