package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayscope/stayscope-cli/internal/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testSnapshot(id, search string, takenAt time.Time) *model.Snapshot {
	rating := 4.5
	return &model.Snapshot{
		ID:         id,
		SearchName: search,
		TakenAt:    takenAt,
		CheckIn:    "2026-09-10",
		CheckOut:   "2026-09-15",
		Listings: []model.ListingRecord{
			{ID: "l1", Name: "Casa Bella", NightlyPrice: 120, Currency: "EUR", UserRating: &rating, Available: true},
			{ID: "l2", NightlyPrice: 80, Currency: "EUR", PossiblyIncomplete: true},
		},
		Failures: []model.TileFailure{
			{Tile: model.GeoTile{NorthLat: 42, SouthLat: 41, EastLng: 13, WestLng: 12}, Attempts: 3, Reason: "timeout"},
		},
		Incomplete: true,
	}
}

func TestSQLite_SnapshotRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("s1", "rome-center", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, st.CommitSnapshot(ctx, snap))

	got, err := st.GetSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.SearchName, got.SearchName)
	assert.Equal(t, snap.CheckIn, got.CheckIn)
	require.Len(t, got.Listings, 2)
	require.NotNil(t, got.Listings[0].UserRating)
	assert.Equal(t, 4.5, *got.Listings[0].UserRating)
	assert.True(t, got.Listings[1].PossiblyIncomplete)
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "timeout", got.Failures[0].Reason)
	assert.True(t, got.Incomplete)
}

func TestSQLite_GetSnapshotMissing(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetSnapshot(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSQLite_CommitIsInsertOnly(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("s1", "rome-center", time.Now().UTC())
	require.NoError(t, st.CommitSnapshot(ctx, snap))

	// Committing the same ID again is rejected, never an overwrite.
	assert.Error(t, st.CommitSnapshot(ctx, snap))
}

func TestSQLite_ListAndLatestSnapshots(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CommitSnapshot(ctx, testSnapshot("s1", "rome-center", base)))
	require.NoError(t, st.CommitSnapshot(ctx, testSnapshot("s2", "rome-center", base.Add(24*time.Hour))))
	require.NoError(t, st.CommitSnapshot(ctx, testSnapshot("s3", "milan", base.Add(48*time.Hour))))

	all, err := st.ListSnapshots(ctx, SnapshotFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rome, err := st.LatestSnapshots(ctx, "rome-center", 2)
	require.NoError(t, err)
	require.Len(t, rome, 2)
	// Newest first.
	assert.Equal(t, "s2", rome[0].ID)
	assert.Equal(t, "s1", rome[1].ID)

	one, err := st.LatestSnapshots(ctx, "rome-center", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "s2", one[0].ID)
}

func TestSQLite_AIResultRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	key := model.ResultKey{ListingID: "l1", Fingerprint: "fp", PromptVersion: "summary-v1", Model: "claude-haiku-4-5-20251001"}

	// Miss before write.
	got, err := st.GetAIResult(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	result := &model.AIResult{
		Key: key,
		Summary: &model.SummaryResult{Focuses: []model.FocusSummary{
			{Focus: "Cleanliness", Bullets: []string{"Spotless"}},
		}},
	}
	require.NoError(t, st.PutAIResult(ctx, result))

	got, err = st.GetAIResult(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Summary)
	assert.Equal(t, []string{"Spotless"}, got.Summary.Focuses[0].Bullets)

	// A different model is a different key.
	other := key
	other.Model = "claude-sonnet-4-5-20250929"
	got, err = st.GetAIResult(ctx, other)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_HasAIResult(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	key := model.ResultKey{ListingID: "l1", Fingerprint: "fp", PromptVersion: "rating-v1", Model: "m"}
	require.NoError(t, st.PutAIResult(ctx, &model.AIResult{Key: key, Rating: &model.RatingResult{Score: 3}}))

	has, err := st.HasAIResult(ctx, "l1", "rating-v1", "m")
	require.NoError(t, err)
	assert.True(t, has)

	// Fingerprint does not participate in the existence check.
	has, err = st.HasAIResult(ctx, "l1", "rating-v2", "m")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLite_CorruptAIResultTreatedAsMiss(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO ai_results (listing_id, fingerprint, prompt_version, model, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"l1", "fp", "summary-v1", "m", "{not json", time.Now().UTC())
	require.NoError(t, err)

	got, err := st.GetAIResult(ctx, model.ResultKey{ListingID: "l1", Fingerprint: "fp", PromptVersion: "summary-v1", Model: "m"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
