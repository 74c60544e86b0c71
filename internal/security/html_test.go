package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosedPolicyDropsEverything(t *testing.T) {
	p := NewHTMLPolicy(HTMLConfig{})
	assert.False(t, p.Enabled())

	for _, in := range []string{
		"<p>hello</p>",
		`<svg onload="x()">`,
		"plain text",
		"",
	} {
		assert.Empty(t, p.Sanitize(in), in)
	}
}

func TestSanitizingPolicy(t *testing.T) {
	p := NewHTMLPolicy(HTMLConfig{Enabled: true})
	require.True(t, p.Enabled())

	tests := []struct {
		name      string
		input     string
		contains  []string
		forbidden []string
	}{
		{
			name:      "svg with onload is removed",
			input:     `<svg onload="x()">`,
			forbidden: []string{"svg", "onload", "x()"},
		},
		{
			name:      "script element and body are removed",
			input:     `<p>ok</p><script>alert(1)</script>`,
			contains:  []string{"<p>ok</p>"},
			forbidden: []string{"script", "alert"},
		},
		{
			name:      "event handler attribute is stripped",
			input:     `<div onclick="steal()">text</div>`,
			contains:  []string{"text"},
			forbidden: []string{"onclick", "steal"},
		},
		{
			name:      "javascript href is stripped",
			input:     `<a href="javascript:alert(1)">click</a>`,
			contains:  []string{"click"},
			forbidden: []string{"javascript"},
		},
		{
			name:      "obfuscated javascript href is stripped",
			input:     `<a href="jav&#x09;ascript:alert(1)">click</a>`,
			forbidden: []string{"ascript", "alert"},
		},
		{
			name:      "http link survives with nofollow",
			input:     `<a href="https://example.com">site</a>`,
			contains:  []string{`href="https://example.com"`, "nofollow", "site"},
			forbidden: []string{},
		},
		{
			name:      "iframe is removed",
			input:     `<iframe src="https://evil.example"></iframe>`,
			forbidden: []string{"iframe", "evil"},
		},
		{
			name:      "images dropped unless enabled",
			input:     `<img src="https://example.com/a.png" alt="a">`,
			forbidden: []string{"<img"},
		},
		{
			name:      "style attribute is stripped",
			input:     `<span style="background:url(javascript:x)">t</span>`,
			contains:  []string{"t"},
			forbidden: []string{"style", "javascript"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.Sanitize(tt.input)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, bad := range tt.forbidden {
				assert.NotContains(t, strings.ToLower(out), bad)
			}
			assert.Empty(t, ContainsActiveContent(out))
		})
	}
}

func TestSanitizingPolicyImages(t *testing.T) {
	p := NewHTMLPolicy(HTMLConfig{Enabled: true, AllowImages: true})

	out := p.Sanitize(`<img src="https://example.com/a.png" alt="a" onerror="x()">`)
	assert.Contains(t, out, `src="https://example.com/a.png"`)
	assert.NotContains(t, out, "onerror")

	out = p.Sanitize(`<img src="data:image/svg+xml;base64,PHN2Zz4=">`)
	assert.NotContains(t, out, "data:")
}

func TestContainsActiveContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"clean", "<p>hi <b>there</b></p>", nil},
		{"svg onload", `<svg onload="x()">`, []string{"attr:onload", "element:svg"}},
		{"script", "<script>1</script>", []string{"element:script"}},
		{"javascript url", `<a href=" JavaScript:go()">x</a>`, []string{"url:javascript"}},
		{"data url", `<img src="data:text/html,hi">`, []string{"url:data"}},
		{"uppercase handler", `<div ONMOUSEOVER="x">`, []string{"attr:onmouseover"}},
		{"srcdoc", `<p srcdoc="<script>">`, []string{"attr:srcdoc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsActiveContent(tt.input))
		})
	}
}

func TestTags(t *testing.T) {
	assert.Equal(t, []string{"b", "div", "p"}, Tags(`<div><p>a</p><P><b>b</b></P></div>`))
	assert.Empty(t, Tags("no markup"))
}
