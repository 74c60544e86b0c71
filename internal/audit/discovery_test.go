package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerFindsSinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.go"), "package b\n\nfunc f() { _ = templ.Raw(s) }\n")
	writeFile(t, filepath.Join(root, "a", "view.vue"), "<div v-html=\"raw\"></div>\n")
	writeFile(t, filepath.Join(root, "a", "page.jsx"), "const x = 1\n<div dangerouslySetInnerHTML={{__html: s}} />\n")
	writeFile(t, filepath.Join(root, "a", "t.j2"), "{{ body|safe }}\n")
	writeFile(t, filepath.Join(root, "a", "dom.ts"), "el.innerHTML = s\n")
	writeFile(t, filepath.Join(root, "notes.md"), "template.HTML( is not scanned in markdown\n")
	writeFile(t, filepath.Join(root, "clean.go"), "package b\n")

	hits, err := (&Scanner{Roots: []string{root}}).Scan(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(hits))
	for _, h := range hits {
		got = append(got, h.Path+":"+h.Sink)
	}
	assert.Equal(t, []string{
		"a/dom.ts:inner-html",
		"a/page.jsx:react-dangerous-html",
		"a/t.j2:jinja-safe-filter",
		"a/view.vue:vue-v-html",
		"b.go:templ-raw",
	}, got)
	assert.Equal(t, 2, hits[1].Line)
	assert.Equal(t, "func f() { _ = templ.Raw(s) }", hits[4].Snippet)
}

func TestScannerExcludesAndSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "node_modules", "lib", "x.js"), "el.innerHTML = s\n")
	writeFile(t, filepath.Join(root, ".git", "hooks", "x.js"), "el.innerHTML = s\n")
	writeFile(t, filepath.Join(root, "gen", "out.go"), "var _ = template.HTML(x)\n")
	writeFile(t, filepath.Join(root, "page_test.go"), "var _ = template.HTML(x)\n")
	writeFile(t, filepath.Join(root, "page.go"), "var _ = template.HTML(x)\n")

	s := &Scanner{Roots: []string{root}, Exclude: []string{"gen/...", "*_test.go"}}
	hits, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "page.go", hits[0].Path)
}

func TestScannerCustomSinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.go"), "var _ = template.HTML(x)\nunsafeWrite(s)\n")

	s := &Scanner{Roots: []string{root}, Sinks: []Sink{{Name: "unsafe-write", Needle: "unsafeWrite("}}}
	hits, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "unsafe-write", hits[0].Sink)
	assert.Equal(t, 2, hits[0].Line)
}

func TestScannerLargeFiles(t *testing.T) {
	root := t.TempDir()
	padding := "// " + strings.Repeat("x", 2<<20) + "\n"
	writeFile(t, filepath.Join(root, "big.go"), "package big\n"+padding+"var out = template.HTML(userInput)\n")
	writeFile(t, filepath.Join(root, "long.go"), "package long\nvar s = \""+strings.Repeat("y", 3<<20)+"\" + template.HTML(userInput)\n")

	// The needle straddles the first chunk boundary.
	split := strings.Repeat("z", scanChunkSize-5) + "template.HTML(x)\n"
	writeFile(t, filepath.Join(root, "split.go"), split)

	hits, err := (&Scanner{Roots: []string{root}}).Scan(context.Background())
	require.NoError(t, err)

	got := make([]string, 0, len(hits))
	for _, h := range hits {
		got = append(got, h.Path+":"+h.Sink)
	}
	assert.Equal(t, []string{
		"big.go:go-template-html",
		"long.go:go-template-html",
		"split.go:go-template-html",
	}, got)
	assert.Equal(t, 3, hits[0].Line)
	assert.Equal(t, "var out = template.HTML(userInput)", hits[0].Snippet)
	assert.Equal(t, 2, hits[1].Line)
	assert.Equal(t, 1, hits[2].Line)
}

func TestScannerOneHitPerLongLine(t *testing.T) {
	root := t.TempDir()
	line := strings.Repeat("template.HTML(x) ", scanChunkSize/4)
	writeFile(t, filepath.Join(root, "many.go"), line+"\nvar ok = 1\ntempl.Raw(y)")

	hits, err := (&Scanner{Roots: []string{root}}).Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Line)
	assert.Equal(t, 3, hits[1].Line)
	assert.Equal(t, "templ-raw", hits[1].Sink)
}

func TestScannerMissingRoot(t *testing.T) {
	_, err := (&Scanner{Roots: []string{filepath.Join(t.TempDir(), "nope")}}).Scan(context.Background())
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consumers.toml")
	writeFile(t, path, `
[[consumer]]
name = "report-renderer"
owner = "docs-team"
sanitizer = "bluemonday"
paths = ["internal/renderer/..."]

[[consumer]]
name = "single-page"
paths = ["web/*.vue"]
`)

	r, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, r.Consumers, 2)
	assert.Equal(t, "bluemonday", r.Consumers[0].Sanitizer)

	tests := []struct {
		file string
		want string
		ok   bool
	}{
		{"internal/renderer/renderer.go", "report-renderer", true},
		{"internal/renderer/sub/x.go", "report-renderer", true},
		{"internal/rendererx/x.go", "", false},
		{"web/app.vue", "single-page", true},
		{"web/deep/app.vue", "", false},
	}
	for _, tt := range tests {
		name, ok := r.Covers(tt.file)
		assert.Equal(t, tt.ok, ok, tt.file)
		assert.Equal(t, tt.want, name, tt.file)
	}

	hits := []Hit{{Path: "web/app.vue"}, {Path: "cmd/x.go"}}
	unregistered := Unregistered(hits, r)
	require.Len(t, unregistered, 1)
	assert.Equal(t, "cmd/x.go", unregistered[0].Path)
	assert.Equal(t, "single-page", hits[0].Consumer)
}

func TestLoadRegistryErrors(t *testing.T) {
	dir := t.TempDir()

	r, err := LoadRegistry(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	assert.Empty(t, r.Consumers)

	cases := map[string]string{
		"syntax":      "[[consumer]\nname = ",
		"no name":     "[[consumer]]\npaths = [\"a\"]\n",
		"no paths":    "[[consumer]]\nname = \"x\"\n",
		"bad pattern": "[[consumer]]\nname = \"x\"\npaths = [\"[\"]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".toml")
			writeFile(t, path, content)
			_, err := LoadRegistry(path)
			assert.Error(t, err)
		})
	}
}
