package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// CSPConfig holds the Content Security Policy written into rendered reports.
type CSPConfig struct {
	DefaultSrc     []string
	ScriptSrc      []string
	StyleSrc       []string
	ImgSrc         []string
	ObjectSrc      []string
	FrameAncestors []string
	BaseURI        []string
	FormAction     []string
}

// ReportCSP is the policy for static extraction reports: no scripts at
// all, inline styles only with the page nonce.
func ReportCSP() *CSPConfig {
	return &CSPConfig{
		DefaultSrc:     []string{"'none'"},
		ScriptSrc:      []string{"'none'"},
		StyleSrc:       []string{"'self'"},
		ImgSrc:         []string{"'self'", "https:"},
		ObjectSrc:      []string{"'none'"},
		FrameAncestors: []string{"'none'"},
		BaseURI:        []string{"'none'"},
		FormAction:     []string{"'none'"},
	}
}

// GenerateNonce generates a cryptographically secure random nonce
func GenerateNonce() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// BuildCSP constructs the Content-Security-Policy value
func BuildCSP(csp *CSPConfig, nonce string) string {
	var directives []string

	addDirective := func(name string, values []string) {
		if len(values) == 0 {
			return
		}
		if nonce != "" && name == "style-src" {
			filtered := make([]string, 0, len(values)+1)
			for _, value := range values {
				if value != "'unsafe-inline'" && value != "'unsafe-eval'" {
					filtered = append(filtered, value)
				}
			}
			values = append(filtered, fmt.Sprintf("'nonce-%s'", nonce))
		}
		directives = append(directives, fmt.Sprintf("%s %s", name, strings.Join(values, " ")))
	}

	addDirective("default-src", csp.DefaultSrc)
	addDirective("script-src", csp.ScriptSrc)
	addDirective("style-src", csp.StyleSrc)
	addDirective("img-src", csp.ImgSrc)
	addDirective("object-src", csp.ObjectSrc)
	addDirective("frame-ancestors", csp.FrameAncestors)
	addDirective("base-uri", csp.BaseURI)
	addDirective("form-action", csp.FormAction)

	return strings.Join(directives, "; ")
}
