package tokenizer

import (
	"testing"

	"github.com/poutila/doxstrux/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "# Title\n" +
	"\n" +
	"Some [link](https://example.com \"T\") and ![alt](img.png).\n" +
	"\n" +
	"```go\n" +
	"fmt.Println(\"x\")\n" +
	"```\n" +
	"\n" +
	"- [x] done\n" +
	"- todo\n" +
	"\n" +
	"| a | b |\n" +
	"|---|---|\n" +
	"| 1 | 2 |\n" +
	"\n" +
	"<div>raw</div>\n"

func kinds(tokens []token.Token, k token.Kind) []token.Token {
	var out []token.Token
	for _, t := range tokens {
		if t.Type == k {
			out = append(out, t)
		}
	}
	return out
}

func TestTokenizeStructure(t *testing.T) {
	tokens, err := New().Tokenize([]byte(sample))
	require.NoError(t, err)
	require.NotEmpty(t, tokens)

	t.Run("heading carries tag and line map", func(t *testing.T) {
		first := tokens[0]
		assert.Equal(t, token.KindHeadingOpen, first.Type)
		assert.Equal(t, "h1", first.Tag)
		require.NotNil(t, first.Map)
		assert.Equal(t, uint32(0), first.Map.Start)
		assert.Equal(t, uint32(1), first.Map.End)
		_, ok := first.Attr("id")
		assert.False(t, ok)
	})

	t.Run("link and image attributes", func(t *testing.T) {
		links := kinds(tokens, token.KindLinkOpen)
		require.Len(t, links, 1)
		assert.Equal(t, "https://example.com", links[0].Attrs["href"])
		assert.Equal(t, "T", links[0].Attrs["title"])

		images := kinds(tokens, token.KindImage)
		require.Len(t, images, 1)
		assert.Equal(t, "img.png", images[0].Attrs["src"])
		assert.Equal(t, "alt", images[0].Attrs["alt"])
	})

	t.Run("fence keeps info and content", func(t *testing.T) {
		fences := kinds(tokens, token.KindFence)
		require.Len(t, fences, 1)
		assert.Equal(t, "go", fences[0].Info)
		assert.Equal(t, "go", fences[0].Attrs["lang"])
		assert.Contains(t, fences[0].Content, "fmt.Println")
		require.NotNil(t, fences[0].Map)
		assert.Equal(t, uint32(4), fences[0].Map.Start)
	})

	t.Run("task list markers land on list items", func(t *testing.T) {
		items := kinds(tokens, token.KindListItemOpen)
		require.Len(t, items, 2)
		assert.Equal(t, "checked", items[0].Attrs["task"])
		_, ok := items[1].Attr("task")
		assert.False(t, ok)
	})

	t.Run("table cells", func(t *testing.T) {
		assert.Len(t, kinds(tokens, token.KindThOpen), 2)
		assert.Len(t, kinds(tokens, token.KindTdOpen), 2)
	})

	t.Run("html block", func(t *testing.T) {
		blocks := kinds(tokens, token.KindHTMLBlock)
		require.Len(t, blocks, 1)
		assert.Contains(t, blocks[0].Content, "<div>raw</div>")
	})
}

func TestTokenizeInvariants(t *testing.T) {
	tokens, err := New().Tokenize([]byte(sample))
	require.NoError(t, err)

	depth := 0
	var lastStart uint32
	for i, tok := range tokens {
		depth += int(tok.Nesting)
		assert.GreaterOrEqual(t, depth, 0, "nesting went negative at %d", i)
		if tok.Map != nil {
			assert.GreaterOrEqual(t, tok.Map.Start, lastStart, "line starts must be monotonic at %d", i)
			assert.LessOrEqual(t, tok.Map.Start, tok.Map.End)
			lastStart = tok.Map.Start
		}
	}
	assert.Equal(t, 0, depth, "open/close tokens must balance")
}

func TestTokenizeExplicitHeadingID(t *testing.T) {
	tokens, err := New().Tokenize([]byte("# Title {#custom}\n"))
	require.NoError(t, err)

	headings := kinds(tokens, token.KindHeadingOpen)
	require.Len(t, headings, 1)
	id, ok := headings[0].Attr("id")
	assert.True(t, ok)
	assert.Equal(t, "custom", id)

	texts := kinds(tokens, token.KindText)
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0].Content, "Title")
	assert.NotContains(t, texts[0].Content, "{#")
}

func TestTokenizeEmpty(t *testing.T) {
	tokens, err := New().Tokenize(nil)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
