package validation

import (
	"net"
	"net/url"
	"strings"

	"github.com/poutila/doxstrux/internal/errors"
	"golang.org/x/net/idna"
)

// DangerousSchemes are never allowed, whatever the caller's context.
var DangerousSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"file":       true,
	"vbscript":   true,
	"about":      true,
	"blob":       true,
	"filesystem": true,
}

// AllowedSchemes are the only schemes reported as allowed.
var AllowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
	"ftp":    true,
	"sftp":   true,
}

// NormalizeURL converts raw into its canonical form and reports whether it
// may be followed. It is the only URL normalization in the module: the
// links collector and the fetcher both call it, so a URL is checked and
// used in exactly the same form.
//
// Control characters, protocol-relative URLs and unparsable input are
// errors. Dangerous schemes return the trimmed input with allowed=false.
// Relative references are returned normalized with allowed=false.
func NormalizeURL(raw string) (string, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false, errors.ParseFailed(raw, nil)
	}

	for i := 0; i < len(s); i++ {
		if s[i] < 32 {
			return "", false, errors.ControlChar(raw, i)
		}
	}

	if isProtocolRelative(s) {
		return "", false, errors.ProtocolRelative(raw)
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", false, errors.ParseFailed(raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if DangerousSchemes[scheme] {
		return s, false, nil
	}
	u.Scheme = scheme

	if u.Host != "" {
		host, err := normalizeHost(u.Host)
		if err != nil {
			return "", false, errors.ParseFailed(raw, err)
		}
		u.Host = host
	} else if scheme == "http" || scheme == "https" {
		return "", false, errors.ParseFailed(raw, nil).WithContext("reason", "missing host")
	}

	return u.String(), AllowedSchemes[scheme], nil
}

// isProtocolRelative also catches the backslash spellings browsers treat
// as "//".
func isProtocolRelative(s string) bool {
	if len(s) < 2 {
		return false
	}
	a, b := s[0], s[1]
	return (a == '/' || a == '\\') && (b == '/' || b == '\\')
}

// normalizeHost lowercases the host and converts IDN labels to their
// ASCII form. When conversion fails the lowercased original is kept.
func normalizeHost(hostport string) (string, error) {
	host, port := hostport, ""
	if h, p, err := net.SplitHostPort(hostport); err == nil {
		host, port = h, p
	}

	if strings.HasPrefix(host, "[") || strings.Contains(host, ":") {
		// IPv6 literal; brackets come back from JoinHostPort below
		host = strings.Trim(host, "[]")
		if net.ParseIP(host) == nil {
			return "", &url.Error{Op: "parse", URL: hostport, Err: net.InvalidAddrError("bad IPv6 literal")}
		}
		host = strings.ToLower(host)
		if port != "" {
			return net.JoinHostPort(host, port), nil
		}
		return "[" + host + "]", nil
	}

	host = strings.ToLower(host)
	if ascii, err := idna.Lookup.ToASCII(host); err == nil && ascii != "" {
		host = ascii
	}

	if port != "" {
		return net.JoinHostPort(host, port), nil
	}
	return host, nil
}
