package collectors

import (
	"context"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/validation"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// Image is one embedded image.
type Image struct {
	Src        string `json:"src" yaml:"src"`
	Normalized string `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Allowed    bool   `json:"allowed" yaml:"allowed"`
	Alt        string `json:"alt" yaml:"alt"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Line       uint32 `json:"line" yaml:"line"`
	Section    string `json:"section,omitempty" yaml:"section,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

type images struct {
	items bounded[Image]
	pos   position
}

func newImages(max int) *images {
	return &images{items: newBounded[Image](max)}
}

func (c *images) Name() string { return string(Images) }

func (c *images) Interest() warehouse.Interest {
	return warehouse.NewInterest(token.KindInline, token.KindImage)
}

func (c *images) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	c.pos.update(dc)
	if tok.Type() != token.KindImage {
		return nil
	}

	img := Image{
		Src:     tok.AttrOr("src", ""),
		Alt:     tok.AttrOr("alt", tok.Content()),
		Title:   tok.AttrOr("title", ""),
		Line:    c.pos.line,
		Section: c.pos.section,
	}
	normalized, allowed, err := validation.NormalizeURL(img.Src)
	if err != nil {
		img.Error = errors.Code(err)
	} else {
		img.Normalized = normalized
		img.Allowed = allowed
	}
	c.items.add(img)
	return nil
}

func (c *images) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	return c.items.output(), nil
}
