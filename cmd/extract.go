package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/poutila/doxstrux/internal/renderer"
	"github.com/poutila/doxstrux/internal/tokenizer"
	"github.com/poutila/doxstrux/internal/warehouse"
	"github.com/spf13/cobra"
)

var (
	extractFormat     = newFormatValue("json", "yaml")
	extractCollectors kindsValue
	extractHTML       string
	extractOutput     string
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE|DIR...",
	Short: "Extract document structure from markdown files",
	Long: `Tokenize each markdown file once and dispatch the token stream to the
selected collectors. The result has one key per collector plus warnings,
collector_errors, elapsed_ms and token_count.

Examples:
  doxstrux extract README.md
  doxstrux extract -c links,images --format yaml docs/
  doxstrux extract --html report.html README.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().VarP(extractFormat, "format", "f", "output format (json, yaml); defaults to output.format")
	extractCmd.Flags().VarP(&extractCollectors, "collectors", "c", "comma-separated collectors to run (default all: "+kindList()+")")
	extractCmd.Flags().StringVar(&extractHTML, "html", "", "also write an HTML report (single input only)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write the result to a file instead of stdout")
}

// extraction is one file's result in command output.
type extraction struct {
	Path   string            `json:"path" yaml:"path"`
	Result *warehouse.Result `json:"result" yaml:"result"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := markdownFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.NewValidationError("ERR_NO_INPUT", "no markdown files found")
	}
	if extractHTML != "" && len(files) != 1 {
		return errors.NewValidationError("ERR_INVALID_ARGS", "--html needs exactly one input file")
	}

	out := make([]extraction, 0, len(files))
	for _, path := range files {
		res, err := extractFile(ctx, path, extractCollectors.kinds, logger)
		if err != nil {
			return err
		}
		out = append(out, extraction{Path: path, Result: res})
	}

	if extractHTML != "" {
		title := filepath.Base(files[0])
		if err := renderer.NewReportRenderer(logger).RenderFile(ctx, extractHTML, title, out[0].Result); err != nil {
			return err
		}
		logger.Info(ctx, "Wrote HTML report", "path", extractHTML)
	}

	w := cmd.OutOrStdout()
	if extractOutput != "" {
		f, err := os.Create(extractOutput)
		if err != nil {
			return errors.WrapIO(err, errors.ErrCodeFileNotFound, "create "+extractOutput)
		}
		defer f.Close()
		w = f
	}

	format := extractFormat.resolve(appConfig.Output.Format)
	if len(out) == 1 {
		return writeOutput(w, format, out[0])
	}
	return writeOutput(w, format, out)
}

// extractFile tokenizes path and runs one warehouse pass over it.
func extractFile(ctx context.Context, path string, kinds []collectors.Kind, log logging.Logger) (*warehouse.Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileNotFound, "read "+path)
	}

	tokens, err := tokenizer.New().Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", path, err)
	}

	w, err := collectors.NewWarehouse(appConfig.WarehouseConfig(log), kinds...)
	if err != nil {
		return nil, err
	}
	if err := w.DispatchAll(ctx, tokens); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", path, err)
	}
	res, err := w.FinalizeAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", path, err)
	}

	log.Debug(ctx, "Extracted document", "path", path, "tokens", res.TokenCount,
		"warnings", len(res.Warnings), "collector_errors", len(res.CollectorErrors))
	return res, nil
}

func kindList() string {
	names := make([]string, 0, len(collectors.Kinds()))
	for _, k := range collectors.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ",")
}
