package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	search_name TEXT NOT NULL,
	taken_at    DATETIME NOT NULL,
	check_in    TEXT,
	check_out   TEXT,
	listings    TEXT NOT NULL,
	failures    TEXT,
	incomplete  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ai_results (
	listing_id     TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	model          TEXT NOT NULL,
	result         TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (listing_id, fingerprint, prompt_version, model)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_search_name ON snapshots(search_name, taken_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CommitSnapshot(ctx context.Context, snap *model.Snapshot) error {
	listingsJSON, err := json.Marshal(snap.Listings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal listings")
	}
	failuresJSON, err := json.Marshal(snap.Failures)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failures")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, search_name, taken_at, check_in, check_out, listings, failures, incomplete)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.SearchName, snap.TakenAt.UTC(), snap.CheckIn, snap.CheckOut,
		string(listingsJSON), string(failuresJSON), boolToInt(snap.Incomplete),
	)
	return eris.Wrapf(err, "sqlite: insert snapshot %s", snap.ID)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, search_name, taken_at, check_in, check_out, listings, failures, incomplete
		 FROM snapshots WHERE id = ?`, id)
	return scanSnapshot(row)
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT id, search_name, taken_at, check_in, check_out, listings, failures, incomplete
	          FROM snapshots WHERE 1=1`
	var args []any

	if filter.SearchName != "" {
		query += ` AND search_name = ?`
		args = append(args, filter.SearchName)
	}
	query += ` ORDER BY taken_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		sn, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *sn)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) LatestSnapshots(ctx context.Context, searchName string, n int) ([]model.Snapshot, error) {
	return s.ListSnapshots(ctx, SnapshotFilter{SearchName: searchName, Limit: n})
}

func (s *SQLiteStore) GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result FROM ai_results
		 WHERE listing_id = ? AND fingerprint = ? AND prompt_version = ? AND model = ?`,
		key.ListingID, key.Fingerprint, key.PromptVersion, key.Model,
	)

	var resultJSON string
	err := row.Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get ai result")
	}

	var res model.AIResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		// Corrupt entry: treat as a miss so the pipeline recomputes it.
		zap.L().Warn("sqlite: corrupt ai result entry, treating as miss",
			zap.String("key", key.String()), zap.Error(err))
		return nil, nil
	}
	return &res, nil
}

func (s *SQLiteStore) HasAIResult(ctx context.Context, listingID, promptVersion, modelName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ai_results
		 WHERE listing_id = ? AND prompt_version = ? AND model = ?`,
		listingID, promptVersion, modelName,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has ai result")
	}
	return n > 0, nil
}

func (s *SQLiteStore) PutAIResult(ctx context.Context, result *model.AIResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal ai result")
	}

	k := result.Key
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ai_results (listing_id, fingerprint, prompt_version, model, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (listing_id, fingerprint, prompt_version, model) DO UPDATE SET result = excluded.result`,
		k.ListingID, k.Fingerprint, k.PromptVersion, k.Model, string(resultJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put ai result %s", k.String())
}

// helpers

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var sn model.Snapshot
	var listingsJSON string
	var failuresJSON sql.NullString
	var incomplete int

	err := row.Scan(&sn.ID, &sn.SearchName, &sn.TakenAt, &sn.CheckIn, &sn.CheckOut,
		&listingsJSON, &failuresJSON, &incomplete)
	if err == sql.ErrNoRows {
		return nil, eris.New("snapshot not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}

	if err := json.Unmarshal([]byte(listingsJSON), &sn.Listings); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal listings")
	}
	if failuresJSON.Valid && failuresJSON.String != "" {
		if err := json.Unmarshal([]byte(failuresJSON.String), &sn.Failures); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal failures")
		}
	}
	sn.Incomplete = incomplete != 0
	return &sn, nil
}
