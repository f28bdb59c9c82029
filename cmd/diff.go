package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/model"
)

var (
	diffFromID string
	diffToID   string
	diffJSON   bool
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare two snapshots of the configured search",
	Long:  "Classifies every listing as new, removed, changed, or unchanged between two snapshots. Defaults to the two most recent snapshots.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var from, to *model.Snapshot
		if diffFromID != "" && diffToID != "" {
			if from, err = st.GetSnapshot(ctx, diffFromID); err != nil {
				return eris.Wrapf(err, "load snapshot %s", diffFromID)
			}
			if to, err = st.GetSnapshot(ctx, diffToID); err != nil {
				return eris.Wrapf(err, "load snapshot %s", diffToID)
			}
		} else {
			snaps, err := st.LatestSnapshots(ctx, cfg.Search.Name, 2)
			if err != nil {
				return eris.Wrap(err, "load latest snapshots")
			}
			if len(snaps) < 2 {
				return eris.Errorf("need two snapshots for search %q, have %d", cfg.Search.Name, len(snaps))
			}
			// LatestSnapshots is newest first.
			from, to = &snaps[1], &snaps[0]
		}

		delta := diff.Diff(from, to, diff.CurrencyRates(cfg.Search.CurrencyRates))

		if diffJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(delta)
		}

		fmt.Printf("Comparing %s -> %s\n", delta.FromID, delta.ToID)
		fmt.Printf("%d new, %d removed, %d changed, %d unchanged\n",
			delta.Count(diff.KindNew), delta.Count(diff.KindRemoved),
			delta.Count(diff.KindChanged), delta.Count(diff.KindUnchanged))
		for _, e := range delta.Entries {
			switch e.Kind {
			case diff.KindNew, diff.KindRemoved:
				fmt.Printf("  %-9s %s\n", e.Kind, e.ID)
			case diff.KindChanged:
				fmt.Printf("  %-9s %s\n", e.Kind, e.ID)
				for _, f := range e.Fields {
					fmt.Printf("            %s: %s -> %s\n", f.Field, f.From, f.To)
				}
			}
		}
		return nil
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffFromID, "from", "", "older snapshot ID")
	diffCmd.Flags().StringVar(&diffToID, "to", "", "newer snapshot ID")
	diffCmd.Flags().BoolVar(&diffJSON, "json", false, "emit the full delta as JSON")
	rootCmd.AddCommand(diffCmd)
}
