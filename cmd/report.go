package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/report"
)

var (
	reportSnapshotID string
	reportFormat     string
	reportChanges    bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a completeness report for a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := loadTargetSnapshot(ctx, st, reportSnapshotID)
		if err != nil {
			return err
		}

		r := report.Build(snap, nil)

		if reportChanges {
			snaps, err := st.LatestSnapshots(ctx, snap.SearchName, 2)
			if err != nil {
				return eris.Wrap(err, "load previous snapshot")
			}
			for _, prev := range snaps {
				if prev.ID != snap.ID {
					r.WithDelta(diff.Diff(&prev, snap, diff.CurrencyRates(cfg.Search.CurrencyRates)))
					break
				}
			}
		}

		switch reportFormat {
		case "yaml":
			return r.WriteYAML(os.Stdout)
		case "text":
			return r.WriteText(os.Stdout)
		default:
			return eris.Errorf("unknown report format %q", reportFormat)
		}
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportSnapshotID, "snapshot", "", "snapshot ID (default: latest for the configured search)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text or yaml")
	reportCmd.Flags().BoolVar(&reportChanges, "changes", false, "include changes since the previous snapshot")
	rootCmd.AddCommand(reportCmd)
}
