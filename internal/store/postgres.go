package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, satisfied by pgxmock in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id          TEXT PRIMARY KEY,
	search_name TEXT NOT NULL,
	taken_at    TIMESTAMPTZ NOT NULL,
	check_in    TEXT,
	check_out   TEXT,
	listings    JSONB NOT NULL,
	failures    JSONB,
	incomplete  BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS ai_results (
	listing_id     TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	prompt_version TEXT NOT NULL,
	model          TEXT NOT NULL,
	result         JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (listing_id, fingerprint, prompt_version, model)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_search_name ON snapshots(search_name, taken_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CommitSnapshot(ctx context.Context, snap *model.Snapshot) error {
	listingsJSON, err := json.Marshal(snap.Listings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal listings")
	}
	failuresJSON, err := json.Marshal(snap.Failures)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failures")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, search_name, taken_at, check_in, check_out, listings, failures, incomplete)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snap.ID, snap.SearchName, snap.TakenAt.UTC(), snap.CheckIn, snap.CheckOut,
		listingsJSON, failuresJSON, snap.Incomplete,
	)
	return eris.Wrapf(err, "postgres: insert snapshot %s", snap.ID)
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, search_name, taken_at, check_in, check_out, listings, failures, incomplete
		 FROM snapshots WHERE id = $1`, id)
	return scanPgSnapshot(row)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]model.Snapshot, error) {
	query := `SELECT id, search_name, taken_at, check_in, check_out, listings, failures, incomplete
	          FROM snapshots`
	var args []any

	if filter.SearchName != "" {
		query += ` WHERE search_name = $1`
		args = append(args, filter.SearchName)
	}
	query += ` ORDER BY taken_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(args) == 1 {
		query += ` LIMIT $2`
	} else {
		query += ` LIMIT $1`
	}
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		sn, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *sn)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) LatestSnapshots(ctx context.Context, searchName string, n int) ([]model.Snapshot, error) {
	return s.ListSnapshots(ctx, SnapshotFilter{SearchName: searchName, Limit: n})
}

func (s *PostgresStore) GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT result FROM ai_results
		 WHERE listing_id = $1 AND fingerprint = $2 AND prompt_version = $3 AND model = $4`,
		key.ListingID, key.Fingerprint, key.PromptVersion, key.Model,
	)

	var resultJSON []byte
	err := row.Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get ai result")
	}

	var res model.AIResult
	if err := json.Unmarshal(resultJSON, &res); err != nil {
		zap.L().Warn("postgres: corrupt ai result entry, treating as miss",
			zap.String("key", key.String()), zap.Error(err))
		return nil, nil
	}
	return &res, nil
}

func (s *PostgresStore) HasAIResult(ctx context.Context, listingID, promptVersion, modelName string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM ai_results
			WHERE listing_id = $1 AND prompt_version = $2 AND model = $3
		)`,
		listingID, promptVersion, modelName,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: has ai result")
}

func (s *PostgresStore) PutAIResult(ctx context.Context, result *model.AIResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal ai result")
	}

	k := result.Key
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ai_results (listing_id, fingerprint, prompt_version, model, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (listing_id, fingerprint, prompt_version, model) DO UPDATE SET result = EXCLUDED.result`,
		k.ListingID, k.Fingerprint, k.PromptVersion, k.Model, resultJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put ai result %s", k.String())
}

func scanPgSnapshot(row pgx.Row) (*model.Snapshot, error) {
	var sn model.Snapshot
	var listingsJSON []byte
	var failuresJSON []byte

	err := row.Scan(&sn.ID, &sn.SearchName, &sn.TakenAt, &sn.CheckIn, &sn.CheckOut,
		&listingsJSON, &failuresJSON, &sn.Incomplete)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("snapshot not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}

	if err := json.Unmarshal(listingsJSON, &sn.Listings); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal listings")
	}
	if len(failuresJSON) > 0 {
		if err := json.Unmarshal(failuresJSON, &sn.Failures); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal failures")
		}
	}
	return &sn, nil
}
