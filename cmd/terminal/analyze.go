package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mphinancial/terminal/internal/pipeline"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze TICKER [TICKER...]",
		Short: "Run the full pipeline for one or more tickers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cfg, flagOffline)
			if err != nil {
				return err
			}
			defer a.close()

			tickers := make([]string, 0, len(args))
			for _, t := range args {
				tickers = append(tickers, strings.ToUpper(strings.TrimSpace(t)))
			}

			verdicts := a.runner.RunBatch(cmd.Context(), tickers)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(verdicts)
			}
			printVerdicts(verdicts, tickers)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON instead of the summary table")
	return cmd
}

func printVerdicts(verdicts map[string]*pipeline.CompositeVerdict, order []string) {
	for _, ticker := range order {
		v := verdicts[ticker]
		if v == nil {
			fmt.Printf("%-8s  <no result>\n", ticker)
			continue
		}

		fmt.Printf("%-8s  %-7s  score %6.2f  confidence %.2f\n",
			v.Ticker, v.Verdict, v.Score, v.AggregateConfidence)

		names := make([]string, 0, len(v.Indicators))
		for name := range v.Indicators {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			res := v.Indicators[name]
			fmt.Printf("  %-18s %6.2f  %-22s conf %.2f\n", name, res.Score, res.Label, res.Confidence)
		}
		for _, d := range v.Deltas {
			if d.ScoreDelta == 0 && !d.LabelChanged {
				continue
			}
			line := fmt.Sprintf("  Δ %-16s %+.2f", d.Indicator, d.ScoreDelta)
			if d.LabelChanged {
				line += fmt.Sprintf("  (%s -> %s)", d.PrevLabel, d.Label)
			}
			fmt.Println(line)
		}
		fmt.Println()
	}
}
