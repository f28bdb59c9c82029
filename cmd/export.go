package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/report"
)

var (
	exportSnapshotID string
	exportOut        string
	exportChanges    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := loadTargetSnapshot(ctx, st, exportSnapshotID)
		if err != nil {
			return err
		}

		var delta *diff.Delta
		if exportChanges {
			snaps, err := st.LatestSnapshots(ctx, snap.SearchName, 2)
			if err != nil {
				return eris.Wrap(err, "load previous snapshot")
			}
			for _, prev := range snaps {
				if prev.ID != snap.ID {
					delta = diff.Diff(&prev, snap, diff.CurrencyRates(cfg.Search.CurrencyRates))
					break
				}
			}
		}

		if err := report.ExportWorkbook(exportOut, snap, delta, nil); err != nil {
			return err
		}

		zap.L().Info("workbook written",
			zap.String("path", exportOut),
			zap.String("snapshot_id", snap.ID),
			zap.Int("listings", len(snap.Listings)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSnapshotID, "snapshot", "", "snapshot ID (default: latest for the configured search)")
	exportCmd.Flags().StringVar(&exportOut, "out", "stayscope.xlsx", "output workbook path")
	exportCmd.Flags().BoolVar(&exportChanges, "changes", false, "include a changes sheet against the previous snapshot")
	rootCmd.AddCommand(exportCmd)
}
