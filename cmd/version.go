package cmd

import (
	"fmt"

	"github.com/poutila/doxstrux/internal/version"
	"github.com/spf13/cobra"
)

var (
	versionFormat   = newFormatValue("text", "json", "yaml")
	versionShort    bool
	versionDetailed bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for doxstrux: version, git commit,
build time, Go version and target platform.

Examples:
  doxstrux version              # Show version and commit
  doxstrux version --detailed   # Show every field
  doxstrux version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().VarP(versionFormat, "format", "f", "output format (text, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the version number only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "print detailed build information")
}

func runVersionCommand(cmd *cobra.Command, _ []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch format := versionFormat.resolve("text"); format {
	case "json", "yaml":
		return writeOutput(out, format, info)
	default:
		switch {
		case versionShort:
			fmt.Fprintln(out, info.Version)
		case versionDetailed:
			fmt.Fprintln(out, info.Detailed())
		default:
			fmt.Fprintln(out, info.Short())
		}
		return nil
	}
}
