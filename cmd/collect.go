package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/orchestrate"
)

var (
	collectSector       string
	collectRegion       string
	collectMaxLeads     int
	collectQualityFloor float64
	collectStrict       bool
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a collection for a sector and region",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCollect(ctx, collectStrict)
		if err != nil {
			return err
		}
		defer env.Close()

		maxLeads := collectMaxLeads
		if maxLeads == 0 {
			maxLeads = cfg.Collect.MaxLeads
		}
		floor := collectQualityFloor
		if floor == 0 {
			floor = cfg.Collect.QualityFloor
		}

		res, err := env.Orchestrator.Collect(ctx, orchestrate.Request{
			Sector:       collectSector,
			Region:       collectRegion,
			MaxLeads:     maxLeads,
			QualityFloor: floor,
		})
		if res != nil {
			formatCollectResult(os.Stdout, res)
		}
		return err
	},
}

func init() {
	collectCmd.Flags().StringVar(&collectSector, "sector", "", "business sector to collect (required)")
	collectCmd.Flags().StringVar(&collectRegion, "region", "", "region to collect in (required)")
	collectCmd.Flags().IntVar(&collectMaxLeads, "max-leads", 0, "stop after this many accepted leads (default from config)")
	collectCmd.Flags().Float64Var(&collectQualityFloor, "quality-floor", 0, "flag leads scoring under this value (default from config)")
	collectCmd.Flags().BoolVar(&collectStrict, "strict", false, "reject leads with no sector keyword match")
	_ = collectCmd.MarkFlagRequired("sector")
	_ = collectCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(collectCmd)
}

func formatCollectResult(out io.Writer, res *orchestrate.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tNAME\tPHONE\tWEBSITE\tSOURCE\tFLAGS")
	for _, l := range res.Leads {
		flags := ""
		if l.QualityFlag {
			flags += "q"
		}
		if l.BelowFloor {
			flags += "f"
		}
		_, _ = fmt.Fprintf(w, "%.0f\t%s\t%s\t%s\t%s\t%s\n",
			l.Score(), l.RawName, l.Phone, l.Website, l.Source, flags)
	}
	_ = w.Flush()

	s := res.Summary
	fmt.Fprintf(out, "\nrun %s: %d accepted, %d rejected, %d duplicates, %d scored",
		res.Run.ID, s.Accepted, s.TotalRejected(), s.Duplicates, s.Scored)
	if s.IntelCostUSD > 0 {
		fmt.Fprintf(out, ", $%.4f intelligence", s.IntelCostUSD)
	}
	fmt.Fprintln(out)

	for id, st := range s.Sources {
		if st.Errors > 0 || st.RateExceeded > 0 {
			fmt.Fprintf(out, "  %s: %d attempts, %d errors, %d rate-exceeded\n",
				id, st.Attempted, st.Errors, st.RateExceeded)
		}
	}
	if res.Run.Status == model.RunStatusFailed {
		fmt.Fprintf(out, "run failed: %s\n", res.Run.Error)
	}
}
