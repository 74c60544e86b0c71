package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/poutila/doxstrux/internal/collectors"
	"github.com/poutila/doxstrux/internal/errors"
	"github.com/poutila/doxstrux/internal/fetch"
	"github.com/spf13/cobra"
)

var linksCmd = &cobra.Command{
	Use:   "links FILE|DIR...",
	Short: "Check external links found in markdown files",
	Long: `Extract links, keep those the URL normalizer allows with an http or
https scheme, and check each distinct URL once. Requests are rate limited
and results are cached in memory or in Redis (fetch.redis_url).

Examples:
  doxstrux links README.md docs/
  doxstrux links --fail-on-broken=false docs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLinks,
}

var (
	linksFormat       = newFormatValue("json", "yaml")
	linksFailOnBroken bool
)

func init() {
	rootCmd.AddCommand(linksCmd)

	linksCmd.Flags().VarP(linksFormat, "format", "f", "output format (json, yaml); defaults to output.format")
	linksCmd.Flags().BoolVar(&linksFailOnBroken, "fail-on-broken", true, "exit non-zero when any link is broken")
}

func runLinks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	files, err := markdownFiles(args)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	var urls []string
	for _, path := range files {
		res, err := extractFile(ctx, path, []collectors.Kind{collectors.Links}, logger)
		if err != nil {
			return err
		}
		out, ok := res.Get(string(collectors.Links))
		if !ok {
			continue
		}
		items, _ := out.Items.([]collectors.Link)
		for _, l := range items {
			u := checkableURL(l)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)

	cache, closeCache, err := appConfig.LinkCache(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeCache(); err != nil {
			logger.Warn(ctx, err, "Closing link cache failed")
		}
	}()

	logger.Info(ctx, "Checking links", "files", len(files), "urls", len(urls))
	statuses := fetch.NewClient(appConfig.Fetch, cache, logger).CheckAll(ctx, urls)

	if err := writeOutput(cmd.OutOrStdout(), linksFormat.resolve(appConfig.Output.Format), statuses); err != nil {
		return err
	}

	broken := 0
	for _, s := range statuses {
		if !s.OK {
			broken++
		}
	}
	if broken > 0 && linksFailOnBroken {
		return errors.NewValidationError("ERR_BROKEN_LINKS", fmt.Sprintf("%d of %d links are broken", broken, len(statuses)))
	}
	return nil
}

// checkableURL returns the normalized form of an allowed absolute web
// link, or "" when the link is not worth a request.
func checkableURL(l collectors.Link) string {
	if !l.Allowed {
		return ""
	}
	u := l.Normalized
	if u == "" {
		u = l.URL
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return ""
}
