package collectors

import (
	"context"
	"strings"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Heading is one section heading. Headings inside block quotes are not
// collected. Every heading opens the section its Slug names, so Section
// values elsewhere in the output always match a heading Slug.
type Heading struct {
	Level   int    `json:"level" yaml:"level"`
	Text    string `json:"text" yaml:"text"`
	Slug    string `json:"slug" yaml:"slug"`
	Line    uint32 `json:"line" yaml:"line"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
}

type headings struct {
	items   bounded[Heading]
	current int
	text    strings.Builder
}

func newHeadings(max int) *headings {
	return &headings{
		items:   newBounded[Heading](max),
		current: -1,
	}
}

func (c *headings) Name() string { return string(Headings) }

func (c *headings) Interest() warehouse.Interest {
	return warehouse.NewInterest(
		token.KindHeadingOpen,
		token.KindHeadingClose,
		token.KindText,
		token.KindCodeInline,
	).Ignoring(token.KindBlockquoteOpen)
}

func (c *headings) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	switch tok.Type() {
	case token.KindHeadingOpen:
		c.text.Reset()
		c.current = c.items.add(Heading{
			Level:   headingLevel(tok.Tag()),
			Slug:    dc.Section,
			Line:    dc.Line,
			Section: dc.Section,
		})

	case token.KindText, token.KindCodeInline:
		if c.current >= 0 {
			c.text.WriteString(tok.Content())
		}

	case token.KindHeadingClose:
		if h := c.items.at(c.current); h != nil {
			h.Text = strings.TrimSpace(c.text.String())
		}
		c.current = -1
		c.text.Reset()
	}
	return nil
}

func (c *headings) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	return c.items.output(), nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}
