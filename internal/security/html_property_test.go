//go:build property

package security

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestHTMLPolicyProperties checks that no generated fragment survives with
// active content, and that the closed policy never emits anything.
func TestHTMLPolicyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)

	tags := gen.OneConstOf("p", "div", "a", "img", "svg", "script", "iframe", "span", "b", "style")
	attrs := gen.OneConstOf("href", "src", "onload", "onclick", "onerror", "style", "title", "alt")
	values := gen.OneConstOf(
		"javascript:alert(1)",
		"JaVaScRiPt:x()",
		"data:text/html,<script>x</script>",
		"https://example.com",
		"x()",
		"vbscript:msgbox",
		"",
	)
	fragment := gen.Struct(reflectFragment, map[string]gopter.Gen{
		"Tag":   tags,
		"Attr":  attrs,
		"Value": values,
		"Text":  gen.AlphaString(),
	})

	enabled := NewHTMLPolicy(HTMLConfig{Enabled: true, AllowImages: true})
	closed := NewHTMLPolicy(HTMLConfig{})

	properties.Property("sanitized output has no active content", prop.ForAll(
		func(f htmlFragment) bool {
			return len(ContainsActiveContent(enabled.Sanitize(f.String()))) == 0
		},
		fragment,
	))

	properties.Property("closed policy emits nothing", prop.ForAll(
		func(f htmlFragment) bool {
			return closed.Sanitize(f.String()) == ""
		},
		fragment,
	))

	properties.TestingRun(t)
}
