package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/hunter/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect merged leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, most recent signal first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		strength, _ := cmd.Flags().GetString("strength")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := model.LeadFilter{Status: model.LeadStatus(status), Limit: limit}
		if strength != "" {
			s, ok := model.ParseStrength(strength)
			if !ok {
				return eris.Errorf("unknown strength %q", strength)
			}
			filter.Strength = s
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

var leadsShowCmd = &cobra.Command{
	Use:   "show <lead-id>",
	Short: "Show a lead with its linked signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid lead id %q", args[0])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		lead, err := st.GetLead(ctx, id)
		if err != nil {
			return eris.Wrap(err, "leads show")
		}
		if lead == nil {
			return eris.Errorf("lead %d not found", id)
		}
		signals, err := st.ListLeadSignals(ctx, id)
		if err != nil {
			return eris.Wrap(err, "leads show signals")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(leadDetail{Lead: lead, Signals: signals})
	},
}

func init() {
	leadsListCmd.Flags().String("status", "", "filter by status (new, ready, contacted, qualified, disqualified)")
	leadsListCmd.Flags().String("strength", "", "filter by strength (COOL, WARM, WARM+, HOT)")
	leadsListCmd.Flags().Int("limit", 50, "max number of leads to display")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsShowCmd)
	rootCmd.AddCommand(leadsCmd)
}

// leadDetail is a lead with the signals that contributed to it.
type leadDetail struct {
	Lead    *model.Lead        `json:"lead"`
	Signals []model.LeadSignal `json:"signals"`
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCONCEPT\tSTRENGTH\tSTATUS\tGEO\tKEY PERSON\tLAST SIGNAL")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t------\t---\t----------\t-----------")

	for _, l := range leads {
		person := ""
		if l.KeyPersonName != nil {
			person = *l.KeyPersonName
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID,
			truncate(l.ConceptName, 30),
			l.SignalStrength,
			l.Status,
			strings.Join(l.TargetGeography, ","),
			person,
			l.LastSignalAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
