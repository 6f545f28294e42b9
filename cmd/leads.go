package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List collected leads, best first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runID, _ := cmd.Flags().GetString("run")
		src, _ := cmd.Flags().GetString("source")
		state, _ := cmd.Flags().GetString("state")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("limit")

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			RunID:    runID,
			Source:   model.SourceID(src),
			State:    model.ValidationState(state),
			MinScore: minScore,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeads(os.Stdout, leads)
		return nil
	},
}

func init() {
	leadsCmd.Flags().String("run", "", "filter by run ID")
	leadsCmd.Flags().String("source", "", "filter by source (websearch, maps, directory)")
	leadsCmd.Flags().String("state", "", "filter by validation state (accepted, rejected)")
	leadsCmd.Flags().Float64("min-score", 0, "only leads scoring at least this value")
	leadsCmd.Flags().Int("limit", 50, "max number of leads to display")
	rootCmd.AddCommand(leadsCmd)
}

func formatLeads(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSCORE\tNAME\tPHONE\tWEBSITE\tSOURCE\tSTATE\tREASON")
	for _, l := range leads {
		score := "-"
		if l.Scored() {
			score = fmt.Sprintf("%.0f", *l.QualificationScore)
		}
		name := l.RawName
		if len([]rune(name)) > 40 {
			name = string([]rune(name)[:37]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, score, name, l.Phone, l.Website, l.Source, l.ValidationState, l.RejectionReason)
	}
	_ = w.Flush()
}
