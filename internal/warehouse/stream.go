package warehouse

import (
	"fmt"
	"strings"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/sections"
	"github.com/poutila/doxstrux/internal/token"
)

// checkLines validates a token's line map. End is exclusive, so a token
// whose last line is maxLine is valid. A token without a map is valid and
// has no line. The returned reason is non-empty for invalid maps.
func checkLines(t *token.Token, maxLine uint32) (uint32, bool, string) {
	if t.Map == nil {
		return 0, false, ""
	}
	lr := *t.Map
	switch {
	case lr.Start > maxLine || (lr.End > lr.Start && lr.End-1 > maxLine):
		return 0, false, fmt.Sprintf("line map [%d, %d) exceeds maximum line %d", lr.Start, lr.End, maxLine)
	case lr.Start > lr.End:
		return 0, false, fmt.Sprintf("line map start %d after end %d", lr.Start, lr.End)
	}
	return lr.Start, true, ""
}

// prescan rejects structurally broken streams and builds the section
// index from heading line maps. Section IDs are slugs of the heading text
// and headings inside block quotes do not start a section. Tokens with
// invalid line maps are left for the dispatch pass to record.
func (w *Warehouse) prescan(tokens []token.Token) (*sections.Index, error) {
	var (
		depth     int
		quotes    int
		lastStart uint32
		seenLine  bool
		lastLine  uint32
		starts    []uint32
		ids       []string
		pending   = -1
		text      strings.Builder
		slugs     = sections.NewSlugger()
	)

	for i := range tokens {
		t := &tokens[i]

		if t.Nesting < -1 || t.Nesting > 1 {
			return nil, errors.MalformedStream(i, fmt.Sprintf("nesting %d is not -1, 0 or 1", t.Nesting))
		}
		depth += int(t.Nesting)
		if depth < 0 {
			return nil, errors.MalformedStream(i, fmt.Sprintf("%s closes a container that was never opened", t.Type))
		}

		switch t.Type {
		case token.KindBlockquoteOpen:
			quotes++
		case token.KindBlockquoteClose:
			quotes--
		case token.KindText, token.KindCodeInline:
			if pending >= 0 {
				text.WriteString(t.Content)
			}
		case token.KindHeadingClose:
			if pending >= 0 && ids[pending] == "" {
				ids[pending] = slugs.Slug(strings.TrimSpace(text.String()))
			}
			pending = -1
		}

		start, ok, reason := checkLines(t, w.cfg.MaxLineNumber)
		if !ok || reason != "" {
			continue
		}
		if seenLine && start < lastStart {
			return nil, errors.MalformedStream(i, fmt.Sprintf("line start %d goes back from %d", start, lastStart))
		}
		lastStart, seenLine = start, true

		end := t.Map.End
		if end > 0 {
			end--
		}
		if end < start {
			end = start
		}
		if end > lastLine {
			lastLine = end
		}

		if t.Type == token.KindHeadingOpen && quotes == 0 && (len(starts) == 0 || start > starts[len(starts)-1]) {
			starts = append(starts, start)
			ids = append(ids, "")
			pending = len(ids) - 1
			text.Reset()
			if id, ok := t.Attr("id"); ok && id != "" {
				ids[pending] = id
				slugs.Take(id)
			}
		}
	}
	if pending >= 0 && ids[pending] == "" {
		ids[pending] = slugs.Slug(strings.TrimSpace(text.String()))
	}

	ix, err := sections.FromHeadings(starts, ids, lastLine)
	if err != nil {
		return nil, errors.MalformedStream(len(tokens), "cannot build section index").WithCause(err)
	}
	return ix, nil
}
