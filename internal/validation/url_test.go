package validation

import (
	"testing"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		want        string
		wantAllowed bool
	}{
		// Allowed schemes
		{
			name:        "lowercases scheme and host",
			url:         "HTTPS://Example.COM/Path",
			want:        "https://example.com/Path",
			wantAllowed: true,
		},
		{
			name:        "trims surrounding whitespace",
			url:         "  http://example.com  ",
			want:        "http://example.com",
			wantAllowed: true,
		},
		{
			name:        "keeps port and query",
			url:         "http://Localhost:8080/a?b=c#d",
			want:        "http://localhost:8080/a?b=c#d",
			wantAllowed: true,
		},
		{
			name:        "converts IDN host to punycode",
			url:         "https://bücher.example/",
			want:        "https://xn--bcher-kva.example/",
			wantAllowed: true,
		},
		{
			name:        "keeps IPv6 literal",
			url:         "http://[::1]:3000/",
			want:        "http://[::1]:3000/",
			wantAllowed: true,
		},
		{
			name:        "mailto is allowed",
			url:         "mailto:someone@example.com",
			want:        "mailto:someone@example.com",
			wantAllowed: true,
		},
		{
			name:        "tel is allowed",
			url:         "tel:+1-555-0100",
			want:        "tel:+1-555-0100",
			wantAllowed: true,
		},
		{
			name:        "ftp is allowed",
			url:         "ftp://files.example.com/pub",
			want:        "ftp://files.example.com/pub",
			wantAllowed: true,
		},

		// Dangerous schemes return the input, disallowed
		{
			name:        "javascript scheme",
			url:         "javascript:alert(1)",
			want:        "javascript:alert(1)",
			wantAllowed: false,
		},
		{
			name:        "mixed-case javascript scheme",
			url:         "JaVaScRiPt:alert(1)",
			want:        "JaVaScRiPt:alert(1)",
			wantAllowed: false,
		},
		{
			name:        "data scheme",
			url:         "data:text/html,<script>alert(1)</script>",
			want:        "data:text/html,<script>alert(1)</script>",
			wantAllowed: false,
		},
		{
			name:        "file scheme",
			url:         "file:///etc/passwd",
			want:        "file:///etc/passwd",
			wantAllowed: false,
		},
		{
			name:        "vbscript scheme",
			url:         "vbscript:msgbox(1)",
			want:        "vbscript:msgbox(1)",
			wantAllowed: false,
		},

		// Unknown schemes and relative references are not allowed
		{
			name:        "websocket scheme",
			url:         "ws://example.com/socket",
			want:        "ws://example.com/socket",
			wantAllowed: false,
		},
		{
			name:        "relative path",
			url:         "docs/guide.md",
			want:        "docs/guide.md",
			wantAllowed: false,
		},
		{
			name:        "fragment only",
			url:         "#install",
			want:        "#install",
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, allowed, err := NormalizeURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantAllowed, allowed)
		})
	}
}

func TestNormalizeURLRejections(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		target error
	}{
		{"protocol-relative", "//evil.example/admin", errors.ErrProtocolRelative},
		{"backslash protocol-relative", "\\\\evil.example/admin", errors.ErrProtocolRelative},
		{"mixed slash protocol-relative", "/\\evil.example", errors.ErrProtocolRelative},
		{"embedded tab", "java\tscript:alert(1)", errors.ErrControlChar},
		{"embedded newline", "http://example.com\nHost: evil", errors.ErrControlChar},
		{"null byte", "http://exa\x00mple.com", errors.ErrControlChar},
		{"empty", "", errors.ErrParseFailed},
		{"whitespace only", "   ", errors.ErrParseFailed},
		{"bad escape", "http://example.com/%zz", errors.ErrParseFailed},
		{"unterminated IPv6", "http://[::1", errors.ErrParseFailed},
		{"http without host", "http://", errors.ErrParseFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, allowed, err := NormalizeURL(tt.url)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Empty(t, got)
			assert.False(t, allowed)
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"HTTP://Example.com/a b",
		"https://bücher.example/x?y=1",
		"http://user:pw@Example.com:8080/p#f",
		"javascript:alert(1)",
		"mailto:A@Example.com",
		"../relative/path",
		"http://example.com/%7Euser",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, allowed, err := NormalizeURL(in)
			require.NoError(t, err)
			second, allowed2, err := NormalizeURL(first)
			require.NoError(t, err)
			assert.Equal(t, first, second)
			assert.Equal(t, allowed, allowed2)
		})
	}
}
