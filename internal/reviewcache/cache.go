// Package reviewcache provides a content-addressed cache for AI analysis
// results, backed by the snapshot store and collapsed through a single-flight
// group so concurrent workers never pay for the same computation twice.
package reviewcache

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stayscope/stayscope-cli/internal/model"
)

// ResultStore is the slice of the snapshot store the cache needs.
type ResultStore interface {
	GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error)
	PutAIResult(ctx context.Context, result *model.AIResult) error
}

// ComputeFunc produces a fresh analysis result for a key on cache miss.
type ComputeFunc func(ctx context.Context) (*model.AIResult, error)

// Cache is a read-through, write-through cache over a ResultStore. Lookups
// for the same key in flight at once share a single computation.
type Cache struct {
	store ResultStore
	group singleflight.Group
	log   *zap.Logger
}

func New(store ResultStore) *Cache {
	return &Cache{
		store: store,
		log:   zap.L().With(zap.String("component", "reviewcache")),
	}
}

// GetOrCompute returns the stored result for key when one exists, otherwise
// runs compute exactly once across all concurrent callers of the same key,
// persists the result, and returns it. A corrupt stored entry behaves as a
// miss. Compute failures are returned to every waiting caller and nothing is
// persisted.
func (c *Cache) GetOrCompute(ctx context.Context, key model.ResultKey, compute ComputeFunc) (*model.AIResult, error) {
	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		cached, err := c.store.GetAIResult(ctx, key)
		if err != nil {
			return nil, eris.Wrap(err, "reviewcache: lookup")
		}
		if cached != nil {
			c.log.Debug("cache hit",
				zap.String("listing_id", key.ListingID),
				zap.String("model", key.Model))
			return cached, nil
		}

		c.log.Debug("cache miss, computing",
			zap.String("listing_id", key.ListingID),
			zap.String("model", key.Model))

		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		result.Key = key

		if err := c.store.PutAIResult(ctx, result); err != nil {
			// The result is still good; a failed write only costs a
			// recompute next run.
			c.log.Warn("persisting result failed",
				zap.String("listing_id", key.ListingID),
				zap.Error(err))
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("shared in-flight result", zap.String("listing_id", key.ListingID))
	}
	return v.(*model.AIResult), nil
}
