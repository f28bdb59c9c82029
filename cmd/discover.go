package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayscope/stayscope-cli/internal/discovery"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/report"
	"github.com/stayscope/stayscope-cli/pkg/stayapi"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run exhaustive listing discovery and commit a snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := stayapi.NewClient(cfg.Source.BaseURL, cfg.Source.APIKey,
			stayapi.WithRateLimit(cfg.Source.RequestsPerSec))

		engine := discovery.NewEngine(client, cfg.Discovery, stayapi.Filters{
			CheckIn:   cfg.Search.CheckIn,
			CheckOut:  cfg.Search.CheckOut,
			Currency:  cfg.Search.Currency,
			MinPrice:  cfg.Search.MinPrice,
			MaxPrice:  cfg.Search.MaxPrice,
			Occupants: cfg.Search.Occupants,
		})

		set, runErr := engine.Discover(ctx, cfg.Search.RootTile())
		if runErr != nil {
			zap.L().Warn("discovery interrupted, committing partial snapshot", zap.Error(runErr))
		}

		// The snapshot must land even when the run was cancelled.
		commitCtx := context.WithoutCancel(ctx)

		snap := &model.Snapshot{
			ID:         uuid.NewString(),
			SearchName: cfg.Search.Name,
			TakenAt:    time.Now().UTC(),
			CheckIn:    cfg.Search.CheckIn,
			CheckOut:   cfg.Search.CheckOut,
			Listings:   set.Records(),
			Failures:   set.Failures,
			Incomplete: runErr != nil,
		}

		if err := st.CommitSnapshot(commitCtx, snap); err != nil {
			return eris.Wrap(err, "commit snapshot")
		}

		zap.L().Info("snapshot committed",
			zap.String("snapshot_id", snap.ID),
			zap.String("search", snap.SearchName),
			zap.Int("listings", len(snap.Listings)),
			zap.Int("excluded_tiles", len(snap.Failures)),
			zap.Bool("incomplete", snap.Incomplete),
		)

		return report.Build(snap, nil).WriteText(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}
