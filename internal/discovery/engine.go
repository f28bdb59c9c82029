// Package discovery implements the exhaustive geographic listing search:
// recursive tile subdivision against a capped search endpoint, merged into a
// deduplicated listing set.
package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stayscope/stayscope-cli/internal/config"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/resilience"
	"github.com/stayscope/stayscope-cli/pkg/stayapi"
)

// Engine runs discovery over a search area through a SourceClient.
type Engine struct {
	client  stayapi.Client
	cfg     config.DiscoveryConfig
	filters stayapi.Filters
	retry   resilience.RetryConfig
}

// NewEngine creates a discovery engine. The filters carry the search context
// (dates, price range, occupancy) applied to every tile query.
func NewEngine(client stayapi.Client, cfg config.DiscoveryConfig, filters stayapi.Filters) *Engine {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.OnRetry = resilience.RetryLogger("stayapi", "query_tile")

	filters.ResultCap = cfg.ResultCap

	return &Engine{
		client:  client,
		cfg:     cfg,
		filters: filters,
		retry:   retry,
	}
}

// tileJob is one unit of work: a tile awaiting query, with its subdivision
// depth for logging.
type tileJob struct {
	tile  model.GeoTile
	depth int
}

// tileQueue is an explicit work queue so subdivision is iterative rather than
// call-stack recursion: bounded memory, parallel dispatch of queued tiles.
type tileQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []tileJob
	inflight int
	closed   bool
}

func newTileQueue(root tileJob) *tileQueue {
	q := &tileQueue{items: []tileJob{root}}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// pop blocks until a job is available or all work has drained. The second
// return is false once the queue is exhausted.
func (q *tileQueue) pop() (tileJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && q.inflight > 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 || q.closed {
		return tileJob{}, false
	}
	job := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	q.inflight++
	return job, true
}

// push enqueues child tiles produced by a saturated parent.
func (q *tileQueue) push(jobs ...tileJob) {
	q.mu.Lock()
	q.items = append(q.items, jobs...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// done marks one popped job finished.
func (q *tileQueue) done() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
	q.cond.Broadcast()
}

// close wakes all waiters on cancellation.
func (q *tileQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Discover queries the root tile and recursively subdivides saturated tiles
// until every leaf returns below the cap or reaches the minimum span floor.
// The returned set is the union of all leaf results, deduplicated by listing
// ID; failed subtrees are recorded on the set, never silently dropped.
//
// On cancellation the set holds everything merged so far and the returned
// error is the context error.
func (e *Engine) Discover(ctx context.Context, root model.GeoTile) (*model.ListingSet, error) {
	if !root.Valid() {
		return nil, eris.Errorf("discovery: invalid root %s", root)
	}

	log := zap.L().With(zap.String("component", "discovery.engine"))
	log.Info("starting discovery",
		zap.String("root", root.String()),
		zap.Int("result_cap", e.cfg.ResultCap),
		zap.Float64("min_span_deg", e.cfg.MinTileSpanDeg),
	)

	set := model.NewListingSet()
	var setMu sync.Mutex

	queue := newTileQueue(tileJob{tile: root})
	var queried, subdivided, failed atomic.Int64

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	// Wake blocked workers if the run is aborted between units of work.
	stopWatch := context.AfterFunc(ctx, queue.close)
	defer stopWatch()

	g := new(errgroup.Group)
	for range workers {
		g.Go(func() error {
			for {
				job, ok := queue.pop()
				if !ok {
					return nil
				}
				e.processTile(ctx, job, queue, set, &setMu, &queried, &subdivided, &failed, log)
				queue.done()
			}
		})
	}
	_ = g.Wait()

	log.Info("discovery complete",
		zap.Int64("tiles_queried", queried.Load()),
		zap.Int64("tiles_subdivided", subdivided.Load()),
		zap.Int64("tiles_failed", failed.Load()),
		zap.Int("listings", set.Len()),
	)

	if err := ctx.Err(); err != nil {
		return set, err
	}
	return set, nil
}

func (e *Engine) processTile(
	ctx context.Context,
	job tileJob,
	queue *tileQueue,
	set *model.ListingSet,
	setMu *sync.Mutex,
	queried, subdivided, failed *atomic.Int64,
	log *zap.Logger,
) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	result, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*stayapi.TileResult, error) {
		return e.client.QueryTile(ctx, job.tile, e.filters)
	})
	queried.Add(1)

	if err != nil {
		failed.Add(1)
		log.Warn("tile query failed, excluding subtree",
			zap.String("tile", job.tile.String()),
			zap.Int("depth", job.depth),
			zap.Error(err),
		)
		setMu.Lock()
		set.Failures = append(set.Failures, model.TileFailure{
			Tile:     job.tile,
			Attempts: e.retry.MaxAttempts,
			Reason:   err.Error(),
		})
		setMu.Unlock()
		return
	}

	atFloor := job.tile.MinSpan() <= e.cfg.MinTileSpanDeg

	if result.Saturated && !atFloor {
		// The platform may be truncating; the children partition the tile
		// exactly, so their union re-covers every listing in it.
		subdivided.Add(1)
		children := job.tile.Subdivide()
		jobs := make([]tileJob, 0, len(children))
		for _, c := range children {
			jobs = append(jobs, tileJob{tile: c, depth: job.depth + 1})
		}
		queue.push(jobs...)
		log.Debug("tile saturated, subdividing",
			zap.String("tile", job.tile.String()),
			zap.Int("depth", job.depth),
			zap.Int("count", len(result.Listings)),
		)
		return
	}

	incomplete := result.Saturated && atFloor
	if incomplete {
		log.Warn("tile saturated at minimum span, accepting best-effort",
			zap.String("tile", job.tile.String()),
			zap.Int("count", len(result.Listings)),
		)
	}

	setMu.Lock()
	for _, rec := range result.Listings {
		if e.filters.MaxPrice > 0 &&
			(rec.NightlyPrice < e.filters.MinPrice || rec.NightlyPrice > e.filters.MaxPrice) {
			continue
		}
		rec.PossiblyIncomplete = incomplete
		set.Add(rec)
	}
	setMu.Unlock()

	log.Debug("tile accepted",
		zap.String("tile", job.tile.String()),
		zap.Int("depth", job.depth),
		zap.Int("count", len(result.Listings)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
