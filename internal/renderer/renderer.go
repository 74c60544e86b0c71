// Package renderer turns an extraction result into a standalone HTML
// report.
//
// The report is the end-to-end check for the HTML policy. The page is a
// templ component (report.templ): sanitized fragments are written with
// templ.Raw only after a second active-content scan, every other value is
// escaped by templ, and link targets go through templ.URL so a scheme that
// slipped past normalization still cannot become a live href. The page carries a script-free Content
// Security Policy whose only inline allowance is a per-page style nonce.
package renderer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/security"
	"github.com/poutila/doxstrux/internal/validation"
	"github.com/poutila/doxstrux/internal/warehouse"
)

// ReportRenderer renders extraction results as HTML pages.
type ReportRenderer struct {
	csp    *security.CSPConfig
	logger logging.Logger
}

// NewReportRenderer creates a renderer using the report CSP. A nil logger
// discards output.
func NewReportRenderer(logger logging.Logger) *ReportRenderer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ReportRenderer{
		csp:    security.ReportCSP(),
		logger: logger.WithComponent("renderer"),
	}
}

// Render writes the full report page for res to w. Control characters
// are stripped from title.
func (r *ReportRenderer) Render(ctx context.Context, w io.Writer, title string, res *warehouse.Result) error {
	nonce, err := security.GenerateNonce()
	if err != nil {
		return err
	}
	return r.Page(validation.SanitizeInput(title), res, nonce).Render(ctx, w)
}

// RenderFile writes the report to path. The file must not be inside a
// hidden or parent directory reference.
func (r *ReportRenderer) RenderFile(ctx context.Context, path, title string, res *warehouse.Result) error {
	if err := validateOutputPath(path); err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}

	if err := r.Render(ctx, f, title, res); err != nil {
		f.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	return f.Close()
}

// Page returns the report component for res. The page markup lives in
// report.templ.
func (r *ReportRenderer) Page(title string, res *warehouse.Result, nonce string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return report(r.view(ctx, title, res, nonce)).Render(ctx, w)
	})
}

// sectionMeta is the heading line of one collector section.
type sectionMeta struct {
	ID         string
	Title      string
	Count      int
	Truncated  bool
	MaxAllowed int
}

type fragmentView struct {
	HTML    string
	Dropped bool
}

type diagnostic struct {
	Level string
	Text  string
}

// reportView is everything report.templ needs. A nil section means the
// collector did not run.
type reportView struct {
	Title string
	Nonce string
	CSP   string

	Headings       *sectionMeta
	HeadingItems   []collectors.Heading
	Links          *sectionMeta
	LinkItems      []collectors.Link
	Images         *sectionMeta
	ImageItems     []collectors.Image
	CodeBlocks     *sectionMeta
	CodeBlockItems []collectors.CodeBlock
	Fragments      *sectionMeta
	FragmentItems  []fragmentView
	Diagnostics    []diagnostic
}

func (r *ReportRenderer) view(ctx context.Context, title string, res *warehouse.Result, nonce string) reportView {
	v := reportView{Title: title, Nonce: nonce, CSP: security.BuildCSP(r.csp, nonce)}

	v.HeadingItems, v.Headings = section[collectors.Heading](res, collectors.Headings, "headings", "Headings")
	v.LinkItems, v.Links = section[collectors.Link](res, collectors.Links, "links", "Links")
	v.ImageItems, v.Images = section[collectors.Image](res, collectors.Images, "images", "Images")
	v.CodeBlockItems, v.CodeBlocks = section[collectors.CodeBlock](res, collectors.CodeBlocks, "code-blocks", "Code blocks")

	var fragments []collectors.HTMLFragment
	fragments, v.Fragments = section[collectors.HTMLFragment](res, collectors.RawHTML, "html", "HTML fragments")
	for i, f := range fragments {
		fv := fragmentView{HTML: f.HTML}
		// a fragment that still shows active content after sanitizing is
		// replaced by a notice
		if findings := security.ContainsActiveContent(f.HTML); len(findings) > 0 {
			r.logger.Warn(ctx, nil, "Dropping fragment with active content",
				"index", i, "line", f.Line, "findings", findings)
			fv = fragmentView{Dropped: true}
		}
		v.FragmentItems = append(v.FragmentItems, fv)
	}

	if res != nil {
		for _, w := range res.Warnings {
			v.Diagnostics = append(v.Diagnostics, diagnostic{Level: "warning", Text: w.Kind + " " + w.Collector + ": " + w.Message})
		}
		for _, e := range res.CollectorErrors {
			v.Diagnostics = append(v.Diagnostics, diagnostic{Level: "error", Text: e.Kind + " " + e.Collector + ": " + e.Message})
		}
	}
	return v
}

// section returns the typed items of one collector and its heading line,
// or a nil heading if the collector did not run.
func section[T any](res *warehouse.Result, kind collectors.Kind, id, title string) ([]T, *sectionMeta) {
	if res == nil {
		return nil, nil
	}
	out, ok := res.Get(string(kind))
	if !ok {
		return nil, nil
	}
	items, ok := out.Items.([]T)
	if !ok {
		return nil, nil
	}
	return items, &sectionMeta{
		ID:         id,
		Title:      title,
		Count:      out.Count,
		Truncated:  out.Truncated,
		MaxAllowed: out.MaxAllowed,
	}
}

func linkText(l collectors.Link) string {
	if l.Text == "" {
		return l.URL
	}
	return l.Text
}

func displayLine(line uint32) string {
	return strconv.FormatUint(uint64(line)+1, 10)
}

// validateOutputPath rejects traversal and writes into hidden directories.
func validateOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return fmt.Errorf("path traversal attempt detected: %s", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(clean)), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return fmt.Errorf("hidden directory not allowed: %s", path)
		}
	}
	if !strings.EqualFold(filepath.Ext(clean), ".html") {
		return fmt.Errorf("report must have an .html extension: %s", path)
	}
	return nil
}
