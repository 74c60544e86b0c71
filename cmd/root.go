package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/poutila/doxstrux/internal/config"
	"github.com/poutila/doxstrux/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// Set by loadConfig before any RunE executes.
	appConfig *config.Config
	logger    logging.Logger = logging.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "doxstrux",
	Short: "Single-pass markdown structure extractor with a security gate",
	Long: `doxstrux tokenizes markdown once and feeds every token to a set of
independent collectors (links, images, headings, code blocks, tables,
lists, raw HTML). Collector caps, timeouts, URL normalization and the
fail-closed HTML policy are applied during that one pass.

Quick Start:
  doxstrux extract README.md                  Extract everything as JSON
  doxstrux extract -c links,headings doc.md   Run selected collectors
  doxstrux extract --html report.html doc.md  Write a browsable report
  doxstrux watch docs/                        Re-extract on change
  doxstrux links README.md                    Check outbound links
  doxstrux audit                              Run the green-light gate

Configuration is read from .doxstrux.yml, the file named by --config or
DOXSTRUX_CONFIG_FILE, and DOXSTRUX_<SECTION>_<KEY> environment variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the command tree. Callers map the error to an exit status
// with errors.ExitCode.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .doxstrux.yml, can also use DOXSTRUX_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// loadConfig builds a fresh Viper per invocation so flag, env and file
// sources never leak between runs.
func loadConfig(cmd *cobra.Command, _ []string) error {
	return readConfig(cmd, true)
}

// readConfig loads configuration into the package globals. Unless strict,
// an invalid configuration is kept so it can be reported field by field.
func readConfig(cmd *cobra.Command, strict bool) error {
	v := viper.New()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.format", flags.Lookup("log-format")); err != nil {
		return err
	}

	load := config.Load
	if !strict {
		load = config.Decode
	}
	cfg, err := load(v)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	if errOut == nil {
		errOut = os.Stderr
	}
	l, err := cfg.NewLogger(errOut)
	if err != nil {
		if strict {
			return err
		}
		l = logging.Nop()
	}

	appConfig = cfg
	logger = l
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}
	return nil
}
