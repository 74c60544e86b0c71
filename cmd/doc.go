// Package cmd provides the command-line interface for doxstrux.
//
// Commands are built with Cobra and share one configuration load that runs
// before every command (see loadConfig).
//
// # Available Commands
//
//   - extract: Tokenize markdown files and print collector output
//   - watch: Re-extract markdown files when they change
//   - links: Check the external links found in markdown files
//   - audit: Run the green-light gate over the repository
//   - baseline: Generate signing keys and signed performance baselines
//   - config: Write, show and validate configuration
//   - version: Print build information
//
// # Command Examples
//
//	// Extract links and headings as YAML
//	doxstrux extract -c links,headings --format yaml README.md
//
//	// Browsable HTML report of one document
//	doxstrux extract --html report.html docs/guide.md
//
//	// Gate a release, comparing a corpus run against the baseline
//	doxstrux audit --corpus testdata/corpus
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. Environment variables (DOXSTRUX_*)
//  3. Configuration file (.doxstrux.yml)
//  4. Default values (lowest priority)
//
// # Exit Codes
//
// main maps the returned error with errors.ExitCode: 0 on success, 1 for
// general failures and 10 to 13 for fatal audit findings.
package cmd
