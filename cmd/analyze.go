package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stayscope/stayscope-cli/internal/analysis"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/report"
	"github.com/stayscope/stayscope-cli/internal/reviewcache"
	"github.com/stayscope/stayscope-cli/internal/store"
	anthropicpkg "github.com/stayscope/stayscope-cli/pkg/anthropic"
	"github.com/stayscope/stayscope-cli/pkg/stayapi"
)

var (
	analyzeSnapshotID   string
	analyzeSkipExisting bool
	analyzeFromSummary  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize and rate guest reviews for a snapshot's listings",
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

		snap, err := loadTargetSnapshot(ctx, st, analyzeSnapshotID)
		if err != nil {
			return err
		}

		source := stayapi.NewClient(cfg.Source.BaseURL, cfg.Source.APIKey,
			stayapi.WithRateLimit(cfg.Source.RequestsPerSec))
		llm := anthropicpkg.NewClient(cfg.Anthropic.Key)
		cache := reviewcache.New(st)

		pipe := analysis.NewPipeline(source, llm, cache, st, cfg.Analysis, cfg.Anthropic.Model)

		result, runErr := pipe.Run(ctx, snap.Listings, analysis.Options{
			SkipExisting:    analyzeSkipExisting,
			RateFromSummary: analyzeFromSummary,
		})
		if runErr != nil {
			zap.L().Warn("analysis interrupted, completed work is cached", zap.Error(runErr))
		}

		return report.Build(snap, result).WriteText(os.Stdout)
	},
}

// loadTargetSnapshot resolves the snapshot a command operates on: an explicit
// ID when given, otherwise the most recent snapshot for the configured search.
func loadTargetSnapshot(ctx context.Context, st store.Store, id string) (*model.Snapshot, error) {
	if id != "" {
		return st.GetSnapshot(ctx, id)
	}
	snaps, err := st.LatestSnapshots(ctx, cfg.Search.Name, 1)
	if err != nil {
		return nil, eris.Wrap(err, "load latest snapshot")
	}
	if len(snaps) == 0 {
		return nil, eris.Errorf("no snapshots for search %q, run discover first", cfg.Search.Name)
	}
	return &snaps[0], nil
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSnapshotID, "snapshot", "", "snapshot ID (default: latest for the configured search)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipExisting, "skip-existing", false, "skip listings already rated under the current prompt version and model")
	analyzeCmd.Flags().BoolVar(&analyzeFromSummary, "rate-from-summary", false, "rate the generated summary instead of the raw review corpus")
	rootCmd.AddCommand(analyzeCmd)
}
