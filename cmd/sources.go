package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/prospector/internal/config"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Show configured sources and their limits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		formatSources(os.Stdout, cfg.Sources)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func formatSources(out io.Writer, sc config.SourcesConfig) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tENABLED\tQUALITY\tRATE LIMIT\tMAX WAIT")

	rows := []struct {
		name string
		cfg  config.SourceConfig
	}{
		{"websearch", sc.WebSearch},
		{"maps", sc.Maps},
		{"directory", sc.Directory},
	}
	for _, r := range rows {
		limit := "unlimited"
		if r.cfg.RateLimit > 0 && r.cfg.WindowSecs > 0 {
			limit = fmt.Sprintf("%d per %ds", r.cfg.RateLimit, r.cfg.WindowSecs)
		}
		_, _ = fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%ds\n",
			r.name, r.cfg.Enabled, r.cfg.Quality, limit, r.cfg.MaxWaitSecs)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nReliability order: %s\n", strings.Join(sc.ReliabilityOrder, " > "))
	fmt.Fprintf(out, "Throttle backoff: base %ds, cap %ds\n", sc.BackoffBaseSecs, sc.BackoffCapSecs)
}
