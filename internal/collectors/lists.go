package collectors

import (
	"context"
	"strings"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// ListItem is one item of a bullet or ordered list. Depth is 1 for
// top-level lists.
type ListItem struct {
	Text    string `json:"text" yaml:"text"`
	Ordered bool   `json:"ordered" yaml:"ordered"`
	Depth   int    `json:"depth" yaml:"depth"`
	Line    uint32 `json:"line" yaml:"line"`
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	Task    bool   `json:"task,omitempty" yaml:"task,omitempty"`
	Checked bool   `json:"checked,omitempty" yaml:"checked,omitempty"`
}

type openItem struct {
	index int
	text  strings.Builder
}

type lists struct {
	items   bounded[ListItem]
	// ordered has one entry per open list
	ordered []bool
	open    []*openItem
}

func newLists(max int) *lists {
	return &lists{items: newBounded[ListItem](max)}
}

func (c *lists) Name() string { return string(Lists) }

func (c *lists) Interest() warehouse.Interest {
	return warehouse.NewInterest(
		token.KindBulletListOpen, token.KindBulletListClose,
		token.KindOrderedListOpen, token.KindOrderedListClose,
		token.KindListItemOpen, token.KindListItemClose,
		token.KindText, token.KindCodeInline, token.KindSoftbreak,
	)
}

func (c *lists) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	switch tok.Type() {
	case token.KindBulletListOpen:
		c.ordered = append(c.ordered, false)
	case token.KindOrderedListOpen:
		c.ordered = append(c.ordered, true)
	case token.KindBulletListClose, token.KindOrderedListClose:
		if len(c.ordered) > 0 {
			c.ordered = c.ordered[:len(c.ordered)-1]
		}

	case token.KindListItemOpen:
		item := ListItem{
			Depth:   len(c.ordered),
			Line:    dc.Line,
			Section: dc.Section,
		}
		if len(c.ordered) > 0 {
			item.Ordered = c.ordered[len(c.ordered)-1]
		}
		if task, ok := tok.Attr("task"); ok {
			item.Task = true
			item.Checked = task == "checked"
		}
		c.open = append(c.open, &openItem{index: c.items.add(item)})

	case token.KindText, token.KindCodeInline:
		if top := c.top(); top != nil && top.index >= 0 {
			top.text.WriteString(tok.Content())
		}
	case token.KindSoftbreak:
		if top := c.top(); top != nil && top.index >= 0 {
			top.text.WriteByte(' ')
		}

	case token.KindListItemClose:
		top := c.top()
		if top == nil {
			return nil
		}
		c.open = c.open[:len(c.open)-1]
		if it := c.items.at(top.index); it != nil {
			it.Text = strings.TrimSpace(top.text.String())
		}
	}
	return nil
}

func (c *lists) top() *openItem {
	if len(c.open) == 0 {
		return nil
	}
	return c.open[len(c.open)-1]
}

func (c *lists) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	c.open = nil
	c.ordered = nil
	return c.items.output(), nil
}
