package collectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Table is one GFM table. Rows past the per-table limit are dropped and
// RowsTruncated is set.
type Table struct {
	Headers       []string   `json:"headers" yaml:"headers"`
	Rows          [][]string `json:"rows" yaml:"rows"`
	Line          uint32     `json:"line" yaml:"line"`
	Section       string     `json:"section,omitempty" yaml:"section,omitempty"`
	RowsTruncated bool       `json:"rows_truncated,omitempty" yaml:"rows_truncated,omitempty"`
}

type tables struct {
	items   bounded[Table]
	maxRows int

	current int
	inHead  bool
	inCell  bool
	row     []string
	cell    strings.Builder
}

func newTables(max, maxRows int) *tables {
	return &tables{items: newBounded[Table](max), maxRows: maxRows, current: -1}
}

func (c *tables) Name() string { return string(Tables) }

func (c *tables) Interest() warehouse.Interest {
	return warehouse.NewInterest(
		token.KindTableOpen, token.KindTableClose,
		token.KindTheadOpen, token.KindTheadClose,
		token.KindTrOpen, token.KindTrClose,
		token.KindThOpen, token.KindThClose,
		token.KindTdOpen, token.KindTdClose,
		token.KindInline,
	)
}

func (c *tables) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	switch tok.Type() {
	case token.KindTableOpen:
		c.current = c.items.add(Table{
			Headers: []string{},
			Rows:    [][]string{},
			Line:    dc.Line,
			Section: dc.Section,
		})
		c.inHead = false

	case token.KindTheadOpen:
		c.inHead = true
	case token.KindTheadClose:
		c.inHead = false

	case token.KindTrOpen:
		c.row = c.row[:0]

	case token.KindThOpen, token.KindTdOpen:
		c.inCell = true
		c.cell.Reset()

	case token.KindInline:
		if c.inCell {
			c.cell.WriteString(tok.Content())
		}

	case token.KindThClose, token.KindTdClose:
		c.inCell = false
		c.row = append(c.row, strings.TrimSpace(c.cell.String()))

	case token.KindTrClose:
		t := c.items.at(c.current)
		if t == nil {
			return nil
		}
		row := append([]string(nil), c.row...)
		switch {
		case c.inHead:
			t.Headers = row
		case len(t.Rows) >= c.maxRows:
			if !t.RowsTruncated {
				t.RowsTruncated = true
				dc.Warn(c.Name(), "table_rows_truncated",
					fmt.Sprintf("table at line %d has more than %d rows", t.Line, c.maxRows))
			}
		default:
			t.Rows = append(t.Rows, row)
		}

	case token.KindTableClose:
		c.current = -1
		c.row = nil
	}
	return nil
}

func (c *tables) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	c.row = nil
	return c.items.output(), nil
}
