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

	"github.com/sells-group/hunter/internal/hunter"
	"github.com/sells-group/hunter/internal/model"
	"github.com/sells-group/hunter/internal/source"
)

var huntCmd = &cobra.Command{
	Use:   "hunt [source...]",
	Short: "Fetch sources and merge new signals into leads",
	Long:  "Runs every configured source, or only the named ones. Each source gets its own run record; one failing source does not stop the others.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initHunter(ctx, "hunt")
		if err != nil {
			return err
		}
		defer env.Close()

		srcs, err := selectSources(env.Sources, args)
		if err != nil {
			return err
		}

		outcomes, err := env.Runner.RunAll(ctx, srcs)
		formatOutcomes(os.Stdout, outcomes)
		if err != nil {
			return eris.Wrap(err, "hunt")
		}

		if failed := countFailed(outcomes); failed > 0 {
			return eris.Errorf("hunt: %d of %d sources failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(huntCmd)
}

// selectSources returns the named sources in argument order, or all of them
// when no names are given.
func selectSources(all []model.Source, names []string) ([]model.Source, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]model.Source, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		src, ok := source.Find(all, name)
		if !ok {
			return nil, eris.Errorf("unknown source %q", name)
		}
		out = append(out, src)
	}
	return out, nil
}

func countFailed(outcomes []hunter.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// formatOutcomes writes one row per source to w.
func formatOutcomes(out io.Writer, outcomes []hunter.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tARTICLES\tSIGNALS\tPROCESSED\tNEW\tMERGED\tERRORS\tRESULT")
	for _, o := range outcomes {
		res := o.Result
		if res == nil {
			res = &model.RunResult{}
		}
		status := "ok"
		if o.Err != nil {
			status = "failed: " + o.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			o.Source,
			res.ArticlesFetched,
			res.SignalsCreated,
			res.SignalsProcessed,
			res.LeadsCreated,
			res.LeadsMerged,
			res.Errors,
			status,
		)
	}
	_ = w.Flush()
}
