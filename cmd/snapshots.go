package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stayscope/stayscope-cli/internal/store"
)

var snapshotsLimit int

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List committed snapshots for the configured search",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		snaps, err := st.ListSnapshots(ctx, store.SnapshotFilter{
			SearchName: cfg.Search.Name,
			Limit:      snapshotsLimit,
		})
		if err != nil {
			return err
		}

		if len(snaps) == 0 {
			fmt.Printf("no snapshots for search %q\n", cfg.Search.Name)
			return nil
		}

		fmt.Printf("%-36s  %-20s  %8s  %s\n", "ID", "TAKEN AT", "LISTINGS", "STATUS")
		for _, sn := range snaps {
			status := "complete"
			if sn.Incomplete {
				status = "incomplete"
			}
			fmt.Printf("%-36s  %-20s  %8d  %s\n",
				sn.ID, sn.TakenAt.UTC().Format("2006-01-02 15:04:05"), len(sn.Listings), status)
		}
		return nil
	},
}

func init() {
	snapshotsCmd.Flags().IntVar(&snapshotsLimit, "limit", 20, "maximum snapshots to list")
	rootCmd.AddCommand(snapshotsCmd)
}
