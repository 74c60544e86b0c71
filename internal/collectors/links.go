package collectors

import (
	"context"
	"strings"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/validation"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Link is one hyperlink. Rejected URLs are kept with Allowed=false and the
// rejection code in Error.
type Link struct {
	URL        string `json:"url" yaml:"url"`
	Normalized string `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Allowed    bool   `json:"allowed" yaml:"allowed"`
	Text       string `json:"text" yaml:"text"`
	Line       uint32 `json:"line" yaml:"line"`
	Section    string `json:"section,omitempty" yaml:"section,omitempty"`
	Autolink   bool   `json:"autolink,omitempty" yaml:"autolink,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

type links struct {
	items   bounded[Link]
	pos     position
	current int
	text    strings.Builder
}

func newLinks(max int) *links {
	return &links{items: newBounded[Link](max), current: -1}
}

func (c *links) Name() string { return string(Links) }

func (c *links) Interest() warehouse.Interest {
	return warehouse.NewInterest(
		token.KindInline,
		token.KindLinkOpen,
		token.KindLinkClose,
		token.KindText,
		token.KindCodeInline,
	)
}

func (c *links) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	switch tok.Type() {
	case token.KindInline:
		c.pos.update(dc)

	case token.KindLinkOpen:
		c.pos.update(dc)
		c.text.Reset()
		c.current = c.items.add(newLink(tok.AttrOr("href", ""), tok.Markup() == "autolink", c.pos))

	case token.KindText, token.KindCodeInline:
		if c.current >= 0 {
			c.text.WriteString(tok.Content())
		}

	case token.KindLinkClose:
		if l := c.items.at(c.current); l != nil {
			l.Text = c.text.String()
		}
		c.current = -1
		c.text.Reset()
	}
	return nil
}

func (c *links) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	c.text.Reset()
	return c.items.output(), nil
}

func newLink(href string, autolink bool, pos position) Link {
	l := Link{URL: href, Autolink: autolink, Line: pos.line, Section: pos.section}
	normalized, allowed, err := validation.NormalizeURL(href)
	if err != nil {
		l.Error = errors.Code(err)
		return l
	}
	l.Normalized = normalized
	l.Allowed = allowed
	return l
}
