package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect configured sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources from the sources file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		srcs, err := source.LoadSources(cfg.Hunter.SourcesFile)
		if err != nil {
			return err
		}
		formatSources(os.Stdout, srcs)
		return nil
	},
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check <source>",
	Short: "Fetch a source and print its articles without storing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srcs, err := source.LoadSources(cfg.Hunter.SourcesFile)
		if err != nil {
			return err
		}
		src, ok := source.Find(srcs, args[0])
		if !ok {
			return eris.Errorf("unknown source %q", args[0])
		}

		adapter, err := source.New(src, initSourceDeps())
		if err != nil {
			return err
		}
		articles, err := adapter.Fetch(ctx)
		if err != nil {
			return eris.Wrapf(err, "check %s", src.Name)
		}

		formatArticles(os.Stdout, articles)
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesCheckCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// sourceTarget returns the URL a source starts from.
func sourceTarget(s model.Source) string {
	switch {
	case s.RSS != nil:
		return s.RSS.FeedURL
	case s.HTTP != nil:
		return s.HTTP.ListingURL
	case s.Browser != nil:
		return s.Browser.ListingURL
	}
	return ""
}

func formatSources(out io.Writer, srcs []model.Source) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tKIND\tMAX\tURL")
	for _, s := range srcs {
		maxArticles := "-"
		if s.MaxArticles > 0 {
			maxArticles = fmt.Sprint(s.MaxArticles)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Kind, maxArticles, sourceTarget(s))
	}
	_ = w.Flush()
}

func formatArticles(out io.Writer, articles []model.FetchedArticle) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PUBLISHED\tCHARS\tTITLE\tURL")
	for _, a := range articles {
		published := "-"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format("2006-01-02")
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", published, len([]rune(a.Content)), truncate(a.Title, 60), a.URL)
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "%d articles\n", len(articles))
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
