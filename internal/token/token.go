// Package token defines the flat token stream consumed by the warehouse.
//
// The layout follows the markdown-it convention: block containers arrive as
// *_open / *_close pairs with Nesting +1 / -1, leaves have Nesting 0, and
// inline content is carried by "inline" tokens followed by their flattened
// children. Tokens are produced by an external tokenizer and never mutated
// after that.
package token

import "strings"

// Kind is the token type, e.g. "heading_open" or "fence".
type Kind string

// Kinds emitted by the bundled tokenizer.
const (
	KindParagraphOpen    Kind = "paragraph_open"
	KindParagraphClose   Kind = "paragraph_close"
	KindHeadingOpen      Kind = "heading_open"
	KindHeadingClose     Kind = "heading_close"
	KindBlockquoteOpen   Kind = "blockquote_open"
	KindBlockquoteClose  Kind = "blockquote_close"
	KindBulletListOpen   Kind = "bullet_list_open"
	KindBulletListClose  Kind = "bullet_list_close"
	KindOrderedListOpen  Kind = "ordered_list_open"
	KindOrderedListClose Kind = "ordered_list_close"
	KindListItemOpen     Kind = "list_item_open"
	KindListItemClose    Kind = "list_item_close"
	KindTableOpen        Kind = "table_open"
	KindTableClose       Kind = "table_close"
	KindTheadOpen        Kind = "thead_open"
	KindTheadClose       Kind = "thead_close"
	KindTbodyOpen        Kind = "tbody_open"
	KindTbodyClose       Kind = "tbody_close"
	KindTrOpen           Kind = "tr_open"
	KindTrClose          Kind = "tr_close"
	KindThOpen           Kind = "th_open"
	KindThClose          Kind = "th_close"
	KindTdOpen           Kind = "td_open"
	KindTdClose          Kind = "td_close"
	KindLinkOpen         Kind = "link_open"
	KindLinkClose        Kind = "link_close"
	KindStrongOpen       Kind = "strong_open"
	KindStrongClose      Kind = "strong_close"
	KindEmOpen           Kind = "em_open"
	KindEmClose          Kind = "em_close"
	KindSOpen            Kind = "s_open"
	KindSClose           Kind = "s_close"

	KindInline     Kind = "inline"
	KindText       Kind = "text"
	KindCodeInline Kind = "code_inline"
	KindSoftbreak  Kind = "softbreak"
	KindHardbreak  Kind = "hardbreak"
	KindFence      Kind = "fence"
	KindCodeBlock  Kind = "code_block"
	KindHTMLBlock  Kind = "html_block"
	KindHTMLInline Kind = "html_inline"
	KindImage      Kind = "image"
	KindHr         Kind = "hr"
)

// Context returns the container name shared by an open/close pair
// ("heading" for heading_open and heading_close). Leaf kinds return
// themselves.
func (k Kind) Context() Kind {
	s := string(k)
	if strings.HasSuffix(s, "_open") {
		return Kind(strings.TrimSuffix(s, "_open"))
	}
	if strings.HasSuffix(s, "_close") {
		return Kind(strings.TrimSuffix(s, "_close"))
	}
	return k
}

// Leaf reports whether k is one of the bundled kinds that never opens a
// container.
func (k Kind) Leaf() bool {
	switch k {
	case KindInline, KindText, KindCodeInline, KindSoftbreak, KindHardbreak,
		KindFence, KindCodeBlock, KindHTMLBlock, KindHTMLInline, KindImage, KindHr:
		return true
	}
	return false
}

// LineRange is a 0-based, end-exclusive source line span.
type LineRange struct {
	Start uint32 `json:"start" yaml:"start"`
	End   uint32 `json:"end" yaml:"end"`
}

// Token is one element of the flat stream.
type Token struct {
	Type    Kind              `json:"type" yaml:"type"`
	Nesting int8              `json:"nesting" yaml:"nesting"`
	Tag     string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Map     *LineRange        `json:"map,omitempty" yaml:"map,omitempty"`
	Content string            `json:"content,omitempty" yaml:"content,omitempty"`
	Info    string            `json:"info,omitempty" yaml:"info,omitempty"`
	Markup  string            `json:"markup,omitempty" yaml:"markup,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	// Level is the tokenizer's own nesting level, informational only.
	Level int `json:"level" yaml:"level"`
}

// Attr returns an attribute value.
func (t *Token) Attr(name string) (string, bool) {
	if t.Attrs == nil {
		return "", false
	}
	v, ok := t.Attrs[name]
	return v, ok
}

// View is a read-only handle on a token. Collectors receive views so the
// borrowed stream cannot be modified during dispatch.
type View struct {
	t *Token
}

// NewView wraps t.
func NewView(t *Token) View { return View{t: t} }

func (v View) Type() Kind      { return v.t.Type }
func (v View) Nesting() int8   { return v.t.Nesting }
func (v View) Tag() string     { return v.t.Tag }
func (v View) Content() string { return v.t.Content }
func (v View) Info() string    { return v.t.Info }
func (v View) Markup() string  { return v.t.Markup }
func (v View) Level() int      { return v.t.Level }

// Lines returns the line map, if any.
func (v View) Lines() (LineRange, bool) {
	if v.t.Map == nil {
		return LineRange{}, false
	}
	return *v.t.Map, true
}

// Attr returns an attribute value.
func (v View) Attr(name string) (string, bool) { return v.t.Attr(name) }

// AttrOr returns an attribute value or def.
func (v View) AttrOr(name, def string) string {
	if s, ok := v.t.Attr(name); ok {
		return s
	}
	return def
}
