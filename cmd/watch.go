package cmd

import (
	"context"
	"os"
	"time"

	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/validation"
	"github.com/poutila/doxstrux/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR...",
	Short: "Re-extract markdown files when they change",
	Long: `Watch directories for markdown changes and print a fresh extraction for
every changed file, one JSON or YAML document per file. Stops on Ctrl-C.

Examples:
  doxstrux watch docs/
  doxstrux watch -c links --debounce 500ms docs/ README.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

var (
	watchFormat     = newFormatValue("json", "yaml")
	watchCollectors kindsValue
	watchDebounce   time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().VarP(watchFormat, "format", "f", "output format (json, yaml); defaults to output.format")
	watchCmd.Flags().VarP(&watchCollectors, "collectors", "c", "comma-separated collectors to run (default all)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "quiet period before a batch of changes is processed")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format := watchFormat.resolve(appConfig.Output.Format)
	out := cmd.OutOrStdout()

	fw, err := watcher.NewFileWatcher(watchDebounce, logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.MarkdownFilter)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoVendorFilter)

	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, event := range events {
			if event.Type == watcher.EventTypeDeleted || event.Type == watcher.EventTypeRenamed {
				logger.Info(ctx, "Document removed", "path", event.Path)
				continue
			}
			if err := validation.ValidateDocumentPath(event.Path); err != nil {
				logger.Warn(ctx, err, "Skipping changed file", "path", event.Path)
				continue
			}
			res, err := extractFile(ctx, event.Path, watchCollectors.kinds, logger)
			if err != nil {
				logger.Warn(ctx, err, "Extraction failed", "path", event.Path)
				continue
			}
			if err := writeOutput(out, format, extraction{Path: event.Path, Result: res}); err != nil {
				return err
			}
		}
		return nil
	})

	for _, path := range args {
		add := fw.AddRecursive
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			add = fw.AddPath
		}
		if err := add(path); err != nil {
			fw.Stop()
			return errors.WrapIO(err, errors.ErrCodeFileNotFound, "watch "+path)
		}
		logger.Info(ctx, "Watching", "path", path)
	}

	err = fw.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
