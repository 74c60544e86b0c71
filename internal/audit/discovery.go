package audit

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Sink is a code pattern that writes unescaped HTML.
type Sink struct {
	Name   string
	Needle string
}

// DefaultSinks are the HTML-rendering calls the scanner looks for.
var DefaultSinks = []Sink{
	{Name: "go-template-html", Needle: "template.HTML("},
	{Name: "templ-raw", Needle: "templ.Raw("},
	{Name: "raw-call", Needle: ".Raw("},
	{Name: "inner-html", Needle: "innerHTML"},
	{Name: "react-dangerous-html", Needle: "dangerouslySetInnerHTML"},
	{Name: "jinja-safe-filter", Needle: "|safe"},
	{Name: "vue-v-html", Needle: "v-html"},
}

// scannedExtensions are the source files that can render HTML.
var scannedExtensions = map[string]bool{
	".go": true, ".templ": true, ".html": true, ".tmpl": true, ".gohtml": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".vue": true, ".svelte": true,
	".py": true, ".jinja": true, ".j2": true,
}

// skippedDirs are never scanned.
var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
}

// scanChunkSize bounds the memory held per line. Longer lines are read in
// chunks that overlap by the longest needle.
const scanChunkSize = 64 << 10

// Hit is one sink occurrence.
type Hit struct {
	Path     string `json:"path" yaml:"path"`
	Line     int    `json:"line" yaml:"line"`
	Sink     string `json:"sink" yaml:"sink"`
	Snippet  string `json:"snippet" yaml:"snippet"`
	Consumer string `json:"consumer,omitempty" yaml:"consumer,omitempty"`
}

// Scanner walks source trees for HTML-rendering sinks.
type Scanner struct {
	Roots   []string
	Exclude []string
	Sinks   []Sink
}

// Scan returns every hit under the roots, sorted by path and line. Paths
// are slash-separated and relative to their root.
func (s *Scanner) Scan(ctx context.Context) ([]Hit, error) {
	sinks := s.Sinks
	if len(sinks) == 0 {
		sinks = DefaultSinks
	}

	var hits []Hit
	for _, root := range s.Roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel != "." && (skippedDirs[d.Name()] || s.excluded(rel, d.Name())) {
					return filepath.SkipDir
				}
				return nil
			}
			if !scannedExtensions[strings.ToLower(path.Ext(rel))] || s.excluded(rel, d.Name()) {
				return nil
			}

			found, err := scanFile(p, rel, sinks)
			if err != nil {
				return err
			}
			hits = append(hits, found...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].Line < hits[j].Line
	})
	return hits, nil
}

// excluded matches patterns against the relative path and the base name.
func (s *Scanner) excluded(rel, name string) bool {
	for _, pattern := range s.Exclude {
		if matchPath(pattern, rel) || matchPath(pattern, name) {
			return true
		}
	}
	return false
}

// scanFile streams p line by line. There is no size cutoff, so padding a
// file cannot hide a sink. At most one hit is recorded per line.
func scanFile(p, rel string, sinks []Sink) ([]Hit, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keep := 0
	for _, sink := range sinks {
		if n := len(sink.Needle) - 1; n > keep {
			keep = n
		}
	}

	var (
		hits    []Hit
		window  []byte
		carry   []byte
		line    = 1
		matched bool
	)
	r := bufio.NewReaderSize(f, scanChunkSize)
	for {
		chunk, err := r.ReadSlice('\n')
		if err != nil && err != bufio.ErrBufferFull && err != io.EOF {
			return nil, err
		}

		window = append(append(window[:0], carry...), chunk...)
		if !matched {
			for _, sink := range sinks {
				if bytes.Contains(window, []byte(sink.Needle)) {
					hits = append(hits, Hit{
						Path:    rel,
						Line:    line,
						Sink:    sink.Name,
						Snippet: snippet(string(window)),
					})
					matched = true
					break
				}
			}
		}

		switch err {
		case bufio.ErrBufferFull:
			tail := window
			if len(tail) > keep {
				tail = tail[len(tail)-keep:]
			}
			carry = append(carry[:0], tail...)
		case io.EOF:
			return hits, nil
		default:
			line++
			carry = carry[:0]
			matched = false
		}
	}
}

func snippet(line string) string {
	line = strings.TrimSpace(line)
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return line
}

// Unregistered annotates hits with their consumer and returns those no
// consumer covers.
func Unregistered(hits []Hit, r *Registry) []Hit {
	var out []Hit
	for i := range hits {
		if name, ok := r.Covers(hits[i].Path); ok {
			hits[i].Consumer = name
			continue
		}
		out = append(out, hits[i])
	}
	return out
}
