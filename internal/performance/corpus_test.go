package performance

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/warehouse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, docs map[string]string) []string {
	t.Helper()

	dir := t.TempDir()
	var files []string
	for name, content := range docs {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		files = append(files, path)
	}
	return files
}

func build() (*warehouse.Warehouse, error) {
	return collectors.NewWarehouse(warehouse.DefaultConfig())
}

func TestRunCorpus(t *testing.T) {
	files := writeCorpus(t, map[string]string{
		"a.md": "# A\n\nSee [x](https://example.com).\n",
		"b.md": "# B\n\n- one\n- two\n",
		"c.md": "```go\nfmt.Println()\n```\n",
	})
	files = append(files, filepath.Join(t.TempDir(), "missing.md"))

	report, err := RunCorpus(context.Background(), files, build, nil)
	require.NoError(t, err)

	require.Len(t, report.Docs, 4)
	assert.Equal(t, 4, report.Stats.Docs)
	assert.Equal(t, 1, report.Stats.Errors)
	assert.NotEmpty(t, report.Docs[3].Error)
	assert.Positive(t, report.Stats.TokensTotal)
	assert.Positive(t, report.Stats.DocsPerSec)
	assert.LessOrEqual(t, report.Stats.P50, report.Stats.P95)
	assert.LessOrEqual(t, report.Stats.P95, report.Stats.Max)

	metrics := report.Stats.Metrics()
	assert.Equal(t, float64(report.Stats.TokensTotal), metrics[MetricTokensTotal])
	assert.Equal(t, 1.0, metrics[MetricErrors])
}

func TestRunCorpusBuildFailure(t *testing.T) {
	files := writeCorpus(t, map[string]string{"a.md": "# A\n"})

	failing := func() (*warehouse.Warehouse, error) {
		cfg := warehouse.DefaultConfig()
		cfg.MaxLinksPerDoc = 0
		return collectors.NewWarehouse(cfg)
	}

	report, err := RunCorpus(context.Background(), files, failing, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stats.Errors)
	assert.Zero(t, report.Stats.P95)
	assert.Zero(t, report.Stats.DocsPerSec)
}

func TestRunCorpusCancelled(t *testing.T) {
	files := writeCorpus(t, map[string]string{"a.md": "# A\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunCorpus(ctx, files, build, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
