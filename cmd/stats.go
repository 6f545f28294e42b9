package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/monitoring"
)

var statsHours int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection metrics",
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

		snap, err := monitoring.NewCollector(st).Collect(ctx, statsHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsHours, "hours", 24, "lookback window in hours")
	rootCmd.AddCommand(statsCmd)
}

func formatSnapshot(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Runs (%dh):\t%d\n", s.LookbackHours, s.RunsTotal)
	_, _ = fmt.Fprintf(w, "  Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.RunsFailed)
	_, _ = fmt.Fprintf(w, "  Running:\t%d\n", s.RunsRunning)
	if s.RunsComplete+s.RunsFailed > 0 {
		_, _ = fmt.Fprintf(w, "  Fail rate:\t%.1f%%\n", s.FailRate*100)
	}
	_, _ = fmt.Fprintf(w, "Accepted:\t%d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", s.Rejected)
	_, _ = fmt.Fprintf(w, "Duplicates:\t%d\n", s.Duplicates)
	if s.Accepted+s.Rejected+s.Duplicates > 0 {
		_, _ = fmt.Fprintf(w, "Acceptance rate:\t%.1f%%\n", s.AcceptanceRate*100)
	}
	if s.IntelCostUSD > 0 {
		_, _ = fmt.Fprintf(w, "Intelligence cost:\t$%.4f\n", s.IntelCostUSD)
	}
	for id, n := range s.SourceErrors {
		if n > 0 {
			_, _ = fmt.Fprintf(w, "Errors (%s):\t%d\n", id, n)
		}
	}
	for id, n := range s.SourceRateExceeded {
		if n > 0 {
			_, _ = fmt.Fprintf(w, "Rate exceeded (%s):\t%d\n", id, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Total leads stored:\t%d\n", s.TotalLeads)
	if s.AvgScore > 0 {
		_, _ = fmt.Fprintf(w, "Avg score:\t%.1f\n", s.AvgScore)
	}
	if s.BelowFloor > 0 {
		_, _ = fmt.Fprintf(w, "Below quality floor:\t%d\n", s.BelowFloor)
	}
	_ = w.Flush()
}
