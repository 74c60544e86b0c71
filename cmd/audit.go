package cmd

import (
	"context"
	"os"

	"github.com/poutila/doxstrux/internal/audit"
	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/performance"
	"github.com/poutila/doxstrux/internal/warehouse"
	"github.com/spf13/cobra"
)

var (
	auditCorpus []string
	auditFormat = newFormatValue("json", "yaml")
	auditOutput string
)

// auditCmd represents the audit command.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the green-light gate",
	Long: `Run the audit checks in order and print a verdict:

  1. performance baseline present and signed by a trusted key
  2. every HTML-rendering sink registered in the consumer registry
  3. required status checks enforced by branch protection

A fatal result stops the sequence and sets the exit status:
  10 baseline missing, 11 baseline unsigned or unverified,
  12 unregistered renderer, 13 branch protection missing.
Advisories (stale baseline, unpinned dependencies, performance
regression against --corpus) are reported but exit 0.

Examples:
  doxstrux audit
  doxstrux audit --corpus testdata/corpus --format yaml`,
	Args: cobra.NoArgs,
	RunE: runAuditCommand,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().StringSliceVar(&auditCorpus, "corpus", nil, "markdown files or directories to benchmark against the baseline")
	auditCmd.Flags().VarP(auditFormat, "format", "f", "verdict format (json, yaml); defaults to output.format")
	auditCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "also write the verdict to this file")
}

func runAuditCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var observations map[string]float64
	if len(auditCorpus) > 0 {
		report, err := runCorpus(ctx, auditCorpus)
		if err != nil {
			return err
		}
		observations = report.Stats.Metrics()
	}

	in, err := appConfig.GateInputs(ctx, observations)
	if err != nil {
		return err
	}

	verdict, err := audit.NewGate(in, logger).Run(ctx)
	if err != nil {
		return err
	}

	format := auditFormat.resolve(appConfig.Output.Format)
	if err := writeOutput(cmd.OutOrStdout(), format, verdict); err != nil {
		return err
	}
	if auditOutput != "" {
		f, err := os.Create(auditOutput)
		if err != nil {
			return errors.WrapIO(err, errors.ErrCodeFileNotFound, "create "+auditOutput)
		}
		defer f.Close()
		if err := writeOutput(f, format, verdict); err != nil {
			return err
		}
	}

	return verdict.Err()
}

// runCorpus benchmarks the configured warehouse over the given inputs.
func runCorpus(ctx context.Context, inputs []string) (*performance.Report, error) {
	files, err := markdownFiles(inputs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.NewValidationError("ERR_NO_INPUT", "corpus contains no markdown files")
	}

	build := func() (*warehouse.Warehouse, error) {
		return collectors.NewWarehouse(appConfig.WarehouseConfig(logger))
	}
	return performance.RunCorpus(ctx, files, build, logger)
}
