package collectors

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// CodeBlock is one fenced or indented code block.
type CodeBlock struct {
	Lang      string `json:"lang,omitempty" yaml:"lang,omitempty"`
	Info      string `json:"info,omitempty" yaml:"info,omitempty"`
	Content   string `json:"content" yaml:"content"`
	Lines     int    `json:"lines" yaml:"lines"`
	Line      uint32 `json:"line" yaml:"line"`
	Section   string `json:"section,omitempty" yaml:"section,omitempty"`
	Fenced    bool   `json:"fenced" yaml:"fenced"`
	Truncated bool   `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

type codeBlocks struct {
	items    bounded[CodeBlock]
	maxBytes int
}

func newCodeBlocks(max, maxBytes int) *codeBlocks {
	return &codeBlocks{items: newBounded[CodeBlock](max), maxBytes: maxBytes}
}

func (c *codeBlocks) Name() string { return string(CodeBlocks) }

func (c *codeBlocks) Interest() warehouse.Interest {
	return warehouse.NewInterest(token.KindFence, token.KindCodeBlock)
}

func (c *codeBlocks) OnToken(_ context.Context, tok token.View, dc *warehouse.DispatchContext) error {
	content := tok.Content()
	block := CodeBlock{
		Info:    strings.TrimSpace(tok.Info()),
		Lines:   strings.Count(content, "\n"),
		Line:    dc.Line,
		Section: dc.Section,
		Fenced:  tok.Type() == token.KindFence,
	}
	if lr, ok := tok.Lines(); ok && block.Lines == 0 && lr.End > lr.Start {
		block.Lines = int(lr.End - lr.Start)
	}

	block.Lang = tok.AttrOr("lang", "")
	if block.Lang == "" && block.Info != "" {
		block.Lang = strings.Fields(block.Info)[0]
	}

	if len(content) > c.maxBytes {
		content = truncateUTF8(content, c.maxBytes)
		block.Truncated = true
		dc.Warn(c.Name(), "code_block_truncated",
			fmt.Sprintf("code block content cut to %d bytes", len(content)))
	}
	block.Content = content

	c.items.add(block)
	return nil
}

func (c *codeBlocks) Finalize(context.Context, *warehouse.Warehouse) (warehouse.Output, error) {
	return c.items.output(), nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
