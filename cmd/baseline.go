package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poutila/doxstrux/internal/audit"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/spf13/cobra"
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Create and sign performance baselines",
	Long: `Manage the signed performance baseline the audit gate verifies.

Examples:
  doxstrux baseline keygen
  doxstrux baseline create --corpus testdata/corpus --key .doxstrux/baseline.key --signer ci`,
}

var baselineKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an ed25519 signing key pair",
	Args:  cobra.NoArgs,
	RunE:  runBaselineKeygen,
}

var baselineCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Benchmark a corpus and write a signed baseline",
	Args:  cobra.NoArgs,
	RunE:  runBaselineCreate,
}

var (
	keygenPrivate string
	keygenPublic  string

	baselineCorpus []string
	baselineKey    string
	baselineSigner string
	baselineOut    string
)

func init() {
	rootCmd.AddCommand(baselineCmd)
	baselineCmd.AddCommand(baselineKeygenCmd, baselineCreateCmd)

	baselineKeygenCmd.Flags().StringVar(&keygenPrivate, "private", ".doxstrux/baseline.key", "private key output path")
	baselineKeygenCmd.Flags().StringVar(&keygenPublic, "public", ".doxstrux/baseline.pub", "public key output path")

	baselineCreateCmd.Flags().StringSliceVar(&baselineCorpus, "corpus", nil, "markdown files or directories to benchmark")
	baselineCreateCmd.Flags().StringVar(&baselineKey, "key", ".doxstrux/baseline.key", "private signing key")
	baselineCreateCmd.Flags().StringVar(&baselineSigner, "signer", "", "signer name recorded in the baseline (must match audit.trusted_keys)")
	baselineCreateCmd.Flags().StringVarP(&baselineOut, "output", "o", "", "baseline path (default audit.baseline_path)")
	_ = baselineCreateCmd.MarkFlagRequired("corpus")
	_ = baselineCreateCmd.MarkFlagRequired("signer")
}

func runBaselineKeygen(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(keygenPrivate); err == nil {
		return errors.ConfigInvalid(keygenPrivate+" already exists; refusing to overwrite a signing key", nil)
	}
	for _, p := range []string{keygenPrivate, keygenPublic} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeFileNotFound, "create directory for "+p)
		}
	}

	pub, err := audit.GenerateKeyPair(keygenPrivate, keygenPublic)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "write key pair")
	}

	logger.Info(cmd.Context(), "Generated baseline signing key", "private", keygenPrivate, "public", keygenPublic)
	fmt.Fprintf(cmd.OutOrStdout(), "Add the public key to your config:\n\naudit:\n  trusted_keys:\n    - signer: <name>\n      key: %s\n",
		base64.StdEncoding.EncodeToString(pub))
	return nil
}

func runBaselineCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	priv, err := audit.LoadPrivateKey(baselineKey)
	if err != nil {
		return errors.ConfigInvalid("signing key "+baselineKey, err)
	}

	report, err := runCorpus(ctx, baselineCorpus)
	if err != nil {
		return err
	}
	if report.Stats.Errors > 0 {
		return errors.NewValidationError("ERR_CORPUS_FAILED",
			fmt.Sprintf("%d corpus documents failed; a baseline must come from a clean run", report.Stats.Errors))
	}

	b := audit.NewBaseline(report.Stats.Metrics(), baselineSigner, time.Now())
	if err := b.Sign(priv); err != nil {
		return err
	}

	out := baselineOut
	if out == "" {
		out = appConfig.Audit.BaselinePath
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "create directory for "+out)
	}
	if err := b.Save(out); err != nil {
		return errors.WrapIO(err, errors.ErrCodeFileNotFound, "write "+out)
	}

	logger.Info(ctx, "Wrote signed baseline", "path", out, "signer", baselineSigner,
		"docs", report.Stats.Docs, "p95_ms", report.Stats.P95)
	return writeOutput(cmd.OutOrStdout(), appConfig.Output.Format, b)
}
