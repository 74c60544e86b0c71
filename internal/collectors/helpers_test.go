package collectors

import (
	"context"
	"testing"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/poutila/doxstrux/internal/tokenizer"
	"github.com/poutila/doxstrux/internal/warehouse"
	"github.com/stretchr/testify/require"
)

func extract(t *testing.T, cfg warehouse.Config, markdown string, kinds ...Kind) *warehouse.Result {
	t.Helper()

	tokens, err := tokenizer.New().Tokenize([]byte(markdown))
	require.NoError(t, err)

	return dispatch(t, cfg, tokens, kinds...)
}

func dispatch(t *testing.T, cfg warehouse.Config, tokens []token.Token, kinds ...Kind) *warehouse.Result {
	t.Helper()

	w, err := NewWarehouse(cfg, kinds...)
	require.NoError(t, err)
	require.NoError(t, w.DispatchAll(context.Background(), tokens))

	res, err := w.FinalizeAll(context.Background())
	require.NoError(t, err)
	return res
}

func itemsOf[T any](t *testing.T, res *warehouse.Result, kind Kind) ([]T, warehouse.Truncation) {
	t.Helper()

	out, ok := res.Get(string(kind))
	require.True(t, ok, "no output for %s", kind)
	items, ok := out.Items.([]T)
	require.True(t, ok, "unexpected item type %T", out.Items)
	return items, out.Truncation
}

// linkTokens builds n links, each inside its own paragraph.
func linkTokens(n int) []token.Token {
	tokens := make([]token.Token, 0, n*6)
	for i := 0; i < n; i++ {
		line := uint32(i)
		tokens = append(tokens,
			token.Token{Type: token.KindParagraphOpen, Nesting: 1, Tag: "p", Map: &token.LineRange{Start: line, End: line + 1}},
			token.Token{Type: token.KindInline, Map: &token.LineRange{Start: line, End: line + 1}},
			token.Token{Type: token.KindLinkOpen, Nesting: 1, Tag: "a", Attrs: map[string]string{"href": "https://example.com/page"}},
			token.Token{Type: token.KindText, Content: "page"},
			token.Token{Type: token.KindLinkClose, Nesting: -1, Tag: "a"},
			token.Token{Type: token.KindParagraphClose, Nesting: -1, Tag: "p"},
		)
	}
	return tokens
}
