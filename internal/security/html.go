// Package security implements the HTML policy applied to raw HTML found in
// markdown documents, and the Content Security Policy used when extraction
// results are rendered to HTML.
//
// Raw HTML is fail-closed: unless a policy is explicitly enabled every
// fragment sanitizes to the empty string.
package security

import (
	"io"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// HTMLConfig controls the raw HTML policy.
type HTMLConfig struct {
	// Enabled turns on the sanitizing policy. When false every fragment
	// is dropped.
	Enabled bool
	// AllowImages keeps <img> elements with http(s) sources.
	AllowImages bool
	// AllowedSchemes restricts href/src schemes. Defaults to http, https and mailto.
	AllowedSchemes []string
}

// Policy sanitizes an HTML fragment.
type Policy interface {
	Sanitize(fragment string) string
	Enabled() bool
}

// NewHTMLPolicy builds the policy for cfg. A disabled config yields a
// policy that drops everything.
func NewHTMLPolicy(cfg HTMLConfig) Policy {
	if !cfg.Enabled {
		return closedPolicy{}
	}
	return &sanitizingPolicy{policy: buildPolicy(cfg)}
}

type closedPolicy struct{}

func (closedPolicy) Sanitize(string) string { return "" }
func (closedPolicy) Enabled() bool          { return false }

type sanitizingPolicy struct {
	policy *bluemonday.Policy
}

func (p *sanitizingPolicy) Sanitize(fragment string) string {
	out := p.policy.Sanitize(fragment)
	// belt and braces: anything the scanner still flags is dropped whole
	if len(ContainsActiveContent(out)) > 0 {
		return ""
	}
	return out
}

func (p *sanitizingPolicy) Enabled() bool { return true }

func buildPolicy(cfg HTMLConfig) *bluemonday.Policy {
	policy := bluemonday.NewPolicy()

	policy.AllowElements(
		"p", "br", "hr", "div", "span",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"b", "i", "strong", "em", "u", "s", "del", "ins",
		"sub", "sup", "small", "mark", "abbr",
		"blockquote", "pre", "code", "kbd", "samp",
		"table", "caption", "thead", "tbody", "tfoot", "tr", "th", "td",
		"details", "summary",
	)

	schemes := cfg.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https", "mailto"}
	}
	policy.AllowURLSchemes(schemes...)
	policy.RequireParseableURLs(true)
	policy.AllowRelativeURLs(false)

	policy.AllowAttrs("href", "title").OnElements("a")
	policy.RequireNoFollowOnLinks(true)

	if cfg.AllowImages {
		policy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	}

	policy.AllowAttrs("colspan", "rowspan", "scope").OnElements("th", "td")

	return policy
}

// activeElements execute or embed content when rendered.
var activeElements = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"frame":    true,
	"object":   true,
	"embed":    true,
	"svg":      true,
	"math":     true,
	"form":     true,
	"base":     true,
	"meta":     true,
	"link":     true,
	"template": true,
}

// ContainsActiveContent scans fragment and returns a sorted, de-duplicated
// list of findings such as "element:script", "attr:onload" or
// "url:javascript". An empty result means nothing active was found.
func ContainsActiveContent(fragment string) []string {
	found := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(fragment))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				found["parse:error"] = struct{}{}
			}
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken && tt != html.EndTagToken {
			continue
		}

		tok := z.Token()
		name := strings.ToLower(tok.Data)
		if activeElements[name] {
			found["element:"+name] = struct{}{}
		}
		for _, attr := range tok.Attr {
			key := strings.ToLower(attr.Key)
			if strings.HasPrefix(key, "on") {
				found["attr:"+key] = struct{}{}
			}
			if key == "style" || key == "srcdoc" || key == "formaction" {
				found["attr:"+key] = struct{}{}
			}
			if key == "href" || key == "src" || key == "action" || key == "xlink:href" {
				if scheme := dangerousScheme(attr.Val); scheme != "" {
					found["url:"+scheme] = struct{}{}
				}
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for k := range found {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tags returns the distinct lower-cased element names in fragment, sorted.
func Tags(fragment string) []string {
	seen := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			seen[strings.ToLower(string(name))] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// dangerousScheme returns the scheme of v when it is one browsers execute.
// Whitespace and control characters are stripped first, as browsers do.
func dangerousScheme(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r > ' ' {
			b.WriteRune(r)
		}
	}
	s := strings.ToLower(b.String())
	for _, scheme := range []string{"javascript", "vbscript", "data"} {
		if strings.HasPrefix(s, scheme+":") {
			return scheme
		}
	}
	return ""
}
