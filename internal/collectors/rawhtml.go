package collectors

import (
	"context"

	"github.com/poutila/doxstrux/internal/security"
	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// HTMLFragment is one raw HTML block or inline fragment after
// sanitizing. The unsanitized source is never part of the output; Tags and
// Dangerous describe what it contained.
type HTMLFragment struct {
	Kind      string   `json:"kind" yaml:"kind"`
	Line      uint32   `json:"line" yaml:"line"`
	Section   string   `json:"section,omitempty" yaml:"section,omitempty"`
	HTML      string   `json:"html" yaml:"html"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Dangerous []string `json:"dangerous,omitempty" yaml:"dangerous,omitempty"`
}

// closedHTML is the raw HTML collector when HTML is not allowed. It has no
// interest, so the warehouse never routes a token to it, and it has no
// state that could hold HTML.
type closedHTML struct {
	max int
}

func (closedHTML) Name() string                 { return string(RawHTML) }
func (closedHTML) Interest() warehouse.Interest { return warehouse.NewInterest() }

func (closedHTML) OnToken(context.Context, token.View, *warehouse.DispatchContext) error {
	return nil
}

func (c closedHTML) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	return warehouse.Output{
		Items:      []HTMLFragment{},
		Truncation: warehouse.Truncation{MaxAllowed: c.max},
	}, nil
}

type pendingHTML struct {
	kind    string
	line    uint32
	section string
	raw     string
}

type rawHTML struct {
	pending bounded[pendingHTML]
	pos     position
	policy  security.Policy
}

func newRawHTML(max int, policy security.Policy) *rawHTML {
	return &rawHTML{pending: newBounded[pendingHTML](max), policy: policy}
}

func (c *rawHTML) Name() string { return string(RawHTML) }

func (c *rawHTML) Interest() warehouse.Interest {
	return warehouse.NewInterest(token.KindInline, token.KindHTMLBlock, token.KindHTMLInline)
}

func (c *rawHTML) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	c.pos.update(dc)
	if tok.Type() == token.KindInline {
		return nil
	}

	kind := "block"
	if tok.Type() == token.KindHTMLInline {
		kind = "inline"
	}
	c.pending.add(pendingHTML{kind: kind, line: c.pos.line, section: c.pos.section, raw: tok.Content()})
	return nil
}

// Finalize sanitizes every stored fragment. The raw fragments are dropped
// afterwards.
func (c *rawHTML) Finalize(ctx context.Context, _ *warehouse.Warehouse) (warehouse.Output, error) {
	raw := c.pending.output()
	pending := raw.Items.([]pendingHTML)

	out := make([]HTMLFragment, 0, len(pending))
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return warehouse.Output{}, err
		}
		out = append(out, HTMLFragment{
			Kind:      p.kind,
			Line:      p.line,
			Section:   p.section,
			HTML:      c.policy.Sanitize(p.raw),
			Tags:      security.Tags(p.raw),
			Dangerous: security.ContainsActiveContent(p.raw),
		})
	}

	return warehouse.Output{Items: out, Truncation: raw.Truncation}, nil
}
