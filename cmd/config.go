package cmd

import (
	"fmt"

	"github.com/poutila/doxstrux/internal/config"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage doxstrux configuration",
	Long: `Create, inspect and validate doxstrux configuration.

Examples:
  doxstrux config init                 # Write .doxstrux.yml with defaults
  doxstrux config show --format yaml   # Show the resolved configuration
  doxstrux config validate --strict    # Treat warnings as errors`,
	// Subcommands must run against an invalid file, so validation is
	// deferred to config validate.
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return readConfig(cmd, false)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [FILE]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after defaults, the config file and
DOXSTRUX_* environment overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Check the resolved configuration and report every problem with a
suggestion. Errors make the command fail; warnings do so only with --strict.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configInitForce      bool
	configShowFormat     = newFormatValue("json", "yaml")
	configValidateStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configShowCmd.Flags().VarP(configShowFormat, "format", "f", "output format (json, yaml)")
	configValidateCmd.Flags().BoolVar(&configValidateStrict, "strict", false, "treat warnings as errors")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.FileName + ".yml"
	if len(args) == 1 {
		path = args[0]
	}
	if err := config.WriteFile(path, config.Default(), configInitForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	return writeOutput(cmd.OutOrStdout(), configShowFormat.resolve("yaml"), appConfig)
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	result := config.ValidateWithDetails(appConfig)
	out := cmd.OutOrStdout()

	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(out, "Configuration is valid")
		return nil
	}
	fmt.Fprint(out, result.String())

	if result.HasErrors() {
		return errors.ConfigInvalid(fmt.Sprintf("configuration has %d errors", len(result.Errors)), nil)
	}
	if configValidateStrict {
		return errors.ConfigInvalid(fmt.Sprintf("configuration has %d warnings (strict)", len(result.Warnings)), nil)
	}
	return nil
}
