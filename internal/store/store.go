// Package store persists snapshot history and cached AI results. Snapshots
// are append-only: committing is the only mutation, and no operation edits or
// deletes a committed snapshot.
package store

import (
	"context"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// SnapshotFilter specifies criteria for listing snapshots.
type SnapshotFilter struct {
	SearchName string `json:"search_name,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Store defines the persistence interface shared by the SQLite and Postgres
// backends.
type Store interface {
	// Snapshots (append-only)
	CommitSnapshot(ctx context.Context, snap *model.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error)
	// LatestSnapshots returns up to n most recent snapshots for a search,
	// newest first.
	LatestSnapshots(ctx context.Context, searchName string, n int) ([]model.Snapshot, error)

	// AI result cache. GetAIResult returns (nil, nil) on a miss; an entry
	// that fails to deserialize is treated as a miss, not an error.
	GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error)
	PutAIResult(ctx context.Context, result *model.AIResult) error
	// HasAIResult reports whether any result exists for a listing under a
	// prompt version and model, regardless of review fingerprint.
	HasAIResult(ctx context.Context, listingID, promptVersion, modelName string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
