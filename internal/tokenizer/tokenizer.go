// Package tokenizer adapts goldmark's AST into the flat token stream the
// warehouse consumes. Block containers become open/close pairs with line
// maps; inline content is flattened after an "inline" token.
package tokenizer

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// Tokenizer converts markdown source into tokens.
type Tokenizer struct {
	md goldmark.Markdown
}

// New creates a tokenizer with GFM tables, strikethrough, task lists and
// linkify enabled. Headings carry an id only when the source sets one
// with {#id}; the warehouse slugs the rest.
func New() *Tokenizer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.TaskList, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithHeadingAttribute(),
		),
	)
	return &Tokenizer{md: md}
}

// Tokenize parses source and returns the flat stream.
func (tz *Tokenizer) Tokenize(source []byte) ([]token.Token, error) {
	doc := tz.md.Parser().Parse(text.NewReader(source))

	e := &emitter{
		source:     source,
		lineStarts: lineStarts(source),
		tokens:     make([]token.Token, 0, 64),
		lastItem:   -1,
	}
	if err := ast.Walk(doc, e.walk); err != nil {
		return nil, fmt.Errorf("walking markdown AST: %w", err)
	}
	return e.tokens, nil
}

type emitter struct {
	source     []byte
	lineStarts []int
	tokens     []token.Token
	level      int
	lastItem   int
}

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineOf maps a byte offset to a 0-based line.
func (e *emitter) lineOf(offset int) uint32 {
	i := sort.Search(len(e.lineStarts), func(i int) bool { return e.lineStarts[i] > offset })
	if i == 0 {
		return 0
	}
	return uint32(i - 1)
}

// span returns the line range covered by a block node and its descendants.
func (e *emitter) span(n ast.Node) *token.LineRange {
	start, stop := -1, -1
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			if lines != nil && lines.Len() > 0 {
				first, last := lines.At(0), lines.At(lines.Len()-1)
				if start < 0 || first.Start < start {
					start = first.Start
				}
				if last.Stop > stop {
					stop = last.Stop
				}
			}
			if fc, ok := n.(*ast.FencedCodeBlock); ok && fc.Info != nil {
				if start < 0 || fc.Info.Segment.Start < start {
					start = fc.Info.Segment.Start
				}
				if fc.Info.Segment.Stop > stop {
					stop = fc.Info.Segment.Stop
				}
			}
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if c.Type() == ast.TypeBlock {
				visit(c)
			}
		}
	}
	visit(n)
	if start < 0 {
		return nil
	}
	end := stop
	if end > start {
		end-- // last byte, not one past it
	}
	return &token.LineRange{Start: e.lineOf(start), End: e.lineOf(end) + 1}
}

func (e *emitter) push(t token.Token) int {
	if t.Nesting < 0 {
		e.level--
	}
	t.Level = e.level
	if t.Nesting > 0 {
		e.level++
	}
	e.tokens = append(e.tokens, t)
	return len(e.tokens) - 1
}

func (e *emitter) pair(entering bool, n ast.Node, name, tag string, attrs map[string]string) {
	if entering {
		e.push(token.Token{Type: token.Kind(name + "_open"), Nesting: 1, Tag: tag, Map: e.span(n), Attrs: attrs})
		return
	}
	e.push(token.Token{Type: token.Kind(name + "_close"), Nesting: -1, Tag: tag})
}

func (e *emitter) linesText(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(e.source))
	}
	return buf.String()
}

// inlineText concatenates the plain text of inline descendants.
func (e *emitter) inlineText(n ast.Node) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(e.source))
		case *ast.String:
			buf.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func (e *emitter) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch v := n.(type) {
	case *ast.Document:
		return ast.WalkContinue, nil

	case *ast.Heading:
		tag := "h" + strconv.Itoa(v.Level)
		if entering {
			var attrs map[string]string
			if id, ok := v.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					attrs = map[string]string{"id": string(b)}
				}
			}
			e.pair(true, v, "heading", tag, attrs)
			e.push(token.Token{Type: token.KindInline, Map: e.span(v), Content: e.linesText(v)})
		} else {
			e.pair(false, v, "heading", tag, nil)
		}

	case *ast.Paragraph:
		if entering {
			e.pair(true, v, "paragraph", "p", nil)
			e.push(token.Token{Type: token.KindInline, Map: e.span(v), Content: e.linesText(v)})
		} else {
			e.pair(false, v, "paragraph", "p", nil)
		}

	case *ast.TextBlock:
		if entering {
			e.push(token.Token{Type: token.KindInline, Map: e.span(v), Content: e.linesText(v)})
		}

	case *ast.Blockquote:
		e.pair(entering, v, "blockquote", "blockquote", nil)

	case *ast.List:
		if v.IsOrdered() {
			var attrs map[string]string
			if entering && v.Start != 1 {
				attrs = map[string]string{"start": strconv.Itoa(v.Start)}
			}
			e.pair(entering, v, "ordered_list", "ol", attrs)
		} else {
			e.pair(entering, v, "bullet_list", "ul", nil)
		}

	case *ast.ListItem:
		if entering {
			e.pair(true, v, "list_item", "li", nil)
			e.lastItem = len(e.tokens) - 1
		} else {
			e.pair(false, v, "list_item", "li", nil)
		}

	case *ast.FencedCodeBlock:
		if entering {
			info := ""
			if v.Info != nil {
				info = string(v.Info.Segment.Value(e.source))
			}
			e.push(token.Token{
				Type:    token.KindFence,
				Tag:     "code",
				Map:     e.span(v),
				Content: e.linesText(v),
				Info:    info,
				Markup:  "```",
				Attrs:   map[string]string{"lang": string(v.Language(e.source))},
			})
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeBlock:
		if entering {
			e.push(token.Token{Type: token.KindCodeBlock, Tag: "code", Map: e.span(v), Content: e.linesText(v)})
		}
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		if entering {
			content := e.linesText(v)
			if v.HasClosure() {
				content += string(v.ClosureLine.Value(e.source))
			}
			e.push(token.Token{Type: token.KindHTMLBlock, Map: e.span(v), Content: content})
		}
		return ast.WalkSkipChildren, nil

	case *ast.ThematicBreak:
		if entering {
			e.push(token.Token{Type: token.KindHr, Tag: "hr", Map: e.span(v)})
		}

	case *extast.Table:
		e.pair(entering, v, "table", "table", nil)

	case *extast.TableHeader:
		if entering {
			e.pair(true, v, "thead", "thead", nil)
			e.pair(true, v, "tr", "tr", nil)
		} else {
			e.pair(false, v, "tr", "tr", nil)
			e.pair(false, v, "thead", "thead", nil)
		}

	case *extast.TableRow:
		e.pair(entering, v, "tr", "tr", nil)

	case *extast.TableCell:
		name, tag := "td", "td"
		if _, ok := v.Parent().(*extast.TableHeader); ok {
			name, tag = "th", "th"
		}
		if entering {
			e.pair(true, v, name, tag, nil)
			e.push(token.Token{Type: token.KindInline, Content: e.inlineText(v)})
		} else {
			e.pair(false, v, name, tag, nil)
		}

	case *ast.Text:
		if entering {
			e.push(token.Token{Type: token.KindText, Content: string(v.Segment.Value(e.source))})
			if v.HardLineBreak() {
				e.push(token.Token{Type: token.KindHardbreak, Tag: "br"})
			} else if v.SoftLineBreak() {
				e.push(token.Token{Type: token.KindSoftbreak})
			}
		}

	case *ast.String:
		if entering {
			e.push(token.Token{Type: token.KindText, Content: string(v.Value)})
		}

	case *ast.CodeSpan:
		if entering {
			e.push(token.Token{Type: token.KindCodeInline, Tag: "code", Content: e.inlineText(v), Markup: "`"})
		}
		return ast.WalkSkipChildren, nil

	case *ast.Emphasis:
		if v.Level >= 2 {
			e.pair(entering, v, "strong", "strong", nil)
		} else {
			e.pair(entering, v, "em", "em", nil)
		}

	case *extast.Strikethrough:
		e.pair(entering, v, "s", "s", nil)

	case *ast.Link:
		if entering {
			attrs := map[string]string{"href": string(v.Destination)}
			if len(v.Title) > 0 {
				attrs["title"] = string(v.Title)
			}
			e.push(token.Token{Type: token.KindLinkOpen, Nesting: 1, Tag: "a", Attrs: attrs})
		} else {
			e.push(token.Token{Type: token.KindLinkClose, Nesting: -1, Tag: "a"})
		}

	case *ast.AutoLink:
		if entering {
			url := string(v.URL(e.source))
			if v.AutoLinkType == ast.AutoLinkEmail && !bytes.HasPrefix(bytes.ToLower([]byte(url)), []byte("mailto:")) {
				url = "mailto:" + url
			}
			e.push(token.Token{Type: token.KindLinkOpen, Nesting: 1, Tag: "a", Markup: "autolink", Attrs: map[string]string{"href": url}})
			e.push(token.Token{Type: token.KindText, Content: string(v.Label(e.source))})
			e.push(token.Token{Type: token.KindLinkClose, Nesting: -1, Tag: "a", Markup: "autolink"})
		}
		return ast.WalkSkipChildren, nil

	case *ast.Image:
		if entering {
			attrs := map[string]string{"src": string(v.Destination), "alt": e.inlineText(v)}
			if len(v.Title) > 0 {
				attrs["title"] = string(v.Title)
			}
			e.push(token.Token{Type: token.KindImage, Tag: "img", Attrs: attrs, Content: attrs["alt"]})
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			var buf bytes.Buffer
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				buf.Write(seg.Value(e.source))
			}
			e.push(token.Token{Type: token.KindHTMLInline, Content: buf.String()})
		}
		return ast.WalkSkipChildren, nil

	case *extast.TaskCheckBox:
		if entering && e.lastItem >= 0 {
			item := &e.tokens[e.lastItem]
			if item.Attrs == nil {
				item.Attrs = make(map[string]string)
			}
			item.Attrs["task"] = "unchecked"
			if v.IsChecked {
				item.Attrs["task"] = "checked"
			}
		}
	}

	return ast.WalkContinue, nil
}
