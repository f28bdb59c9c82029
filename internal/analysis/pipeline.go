// Package analysis runs the AI review pipeline: it fetches each listing's
// reviews, summarizes them against the configured focus areas, and produces a
// numeric rating, with all LLM output cached by review-content fingerprint.
package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stayscope/stayscope-cli/internal/config"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/resilience"
	"github.com/stayscope/stayscope-cli/internal/reviewcache"
	"github.com/stayscope/stayscope-cli/pkg/anthropic"
	"github.com/stayscope/stayscope-cli/pkg/stayapi"
)

// ExistenceChecker is implemented by stores that can answer whether a listing
// already has any result under a prompt version and model, without knowing
// the review fingerprint.
type ExistenceChecker interface {
	HasAIResult(ctx context.Context, listingID, promptVersion, model string) (bool, error)
}

// Options tune a single pipeline run.
type Options struct {
	// SkipExisting skips listings that already have a rating stored under the
	// current prompt version and model, without fetching their reviews.
	SkipExisting bool

	// RateFromSummary feeds the generated summary to the rating prompt
	// instead of the raw review corpus.
	RateFromSummary bool
}

// Report is the outcome of one pipeline run. Failed listings are recorded,
// never silently dropped; their absence from Analyses is explained by the
// matching Failures entry.
type Report struct {
	Analyses []model.ListingAnalysis
	Failures []*model.AnalysisError
	Skipped  int
}

// Pipeline analyzes listings concurrently under a bounded worker pool.
type Pipeline struct {
	source   stayapi.Client
	llm      anthropic.Client
	cache    *reviewcache.Cache
	existing ExistenceChecker
	cfg      config.AnalysisConfig
	model    string
	retry    resilience.RetryConfig
	log      *zap.Logger
}

func NewPipeline(source stayapi.Client, llm anthropic.Client, cache *reviewcache.Cache,
	existing ExistenceChecker, cfg config.AnalysisConfig, modelName string) *Pipeline {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	return &Pipeline{
		source:   source,
		llm:      llm,
		cache:    cache,
		existing: existing,
		cfg:      cfg,
		model:    modelName,
		retry:    retry,
		log:      zap.L().With(zap.String("component", "analysis")),
	}
}

// summaryVersion and ratingVersion derive distinct cache prompt versions for
// the two operations so their entries never collide under one key space.
func (p *Pipeline) summaryVersion() string { return "summary-" + p.cfg.PromptVersion }

func (p *Pipeline) ratingVersion(opts Options) string {
	if opts.RateFromSummary {
		return "rating-fs-" + p.cfg.PromptVersion
	}
	return "rating-" + p.cfg.PromptVersion
}

// Run analyzes every listing. Per-listing failures are isolated: they are
// recorded on the report and the run continues. Cancellation stops scheduling
// new listings, retains completed work, and returns the context error.
func (p *Pipeline) Run(ctx context.Context, listings []model.ListingRecord, opts Options) (*Report, error) {
	report := &Report{}
	var mu sync.Mutex

	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, listing := range listings {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			analysis, skipped, err := p.analyzeListing(gctx, listing, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case skipped:
				report.Skipped++
			case err != nil:
				var aerr *model.AnalysisError
				if !errors.As(err, &aerr) {
					aerr = &model.AnalysisError{ListingID: listing.ID, Stage: "summarize", Err: err}
				}
				p.log.Warn("listing analysis failed",
					zap.String("listing_id", aerr.ListingID),
					zap.String("stage", aerr.Stage),
					zap.Error(aerr.Err))
				report.Failures = append(report.Failures, aerr)
			default:
				report.Analyses = append(report.Analyses, *analysis)
			}
			return nil
		})
	}

	_ = g.Wait()

	p.log.Info("analysis run finished",
		zap.Int("analyzed", len(report.Analyses)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("skipped", report.Skipped))

	return report, ctx.Err()
}

func (p *Pipeline) analyzeListing(ctx context.Context, listing model.ListingRecord, opts Options) (*model.ListingAnalysis, bool, error) {
	// The deadline covers the whole listing unit; per-call timeouts live in
	// the HTTP clients.
	if p.cfg.TimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.TimeoutSecs)*time.Second)
		defer cancel()
	}

	if opts.SkipExisting && p.existing != nil {
		exists, err := p.existing.HasAIResult(ctx, listing.ID, p.ratingVersion(opts), p.model)
		if err == nil && exists {
			p.log.Debug("skipping previously analyzed listing", zap.String("listing_id", listing.ID))
			return nil, true, nil
		}
	}

	reviews, err := resilience.DoVal(ctx, p.fetchRetry(), func(ctx context.Context) ([]model.ReviewRecord, error) {
		return p.source.FetchReviews(ctx, listing.ID)
	})
	if err != nil {
		return nil, false, &model.AnalysisError{ListingID: listing.ID, Stage: "fetch_reviews", Err: err}
	}

	fingerprint := model.BatchFingerprint(reviews)
	corpus := model.ReviewCorpus(listing, reviews)

	summary, err := p.summarize(ctx, listing.ID, fingerprint, corpus)
	if err != nil {
		return nil, false, &model.AnalysisError{ListingID: listing.ID, Stage: "summarize", Err: err}
	}

	ratingInput := corpus
	if opts.RateFromSummary {
		ratingInput = summaryText(summary)
	}
	rating, err := p.rate(ctx, listing.ID, fingerprint, ratingInput, opts)
	if err != nil {
		return nil, false, &model.AnalysisError{ListingID: listing.ID, Stage: "rate", Err: err}
	}

	return &model.ListingAnalysis{
		ListingID: listing.ID,
		Summary:   summary,
		Rating:    rating,
	}, false, nil
}

func (p *Pipeline) summarize(ctx context.Context, listingID, fingerprint, corpus string) (*model.SummaryResult, error) {
	key := model.ResultKey{
		ListingID:     listingID,
		Fingerprint:   fingerprint,
		PromptVersion: p.summaryVersion(),
		Model:         p.model,
	}

	result, err := p.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*model.AIResult, error) {
		resp, err := p.complete(ctx, anthropic.MessageRequest{
			Model:       p.model,
			MaxTokens:   p.cfg.MaxTokens,
			System:      renderSummarySystem(p.cfg.SummaryPrompt, p.cfg.FocusAreas),
			Messages:    []anthropic.Message{{Role: "user", Content: corpus}},
			Temperature: &p.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		resp.Usage.LogCost(p.model, "summarize")
		return &model.AIResult{Summary: parseSummary(resp.Text, p.cfg.FocusAreas)}, nil
	})
	if err != nil {
		return nil, err
	}
	if result.Summary == nil {
		return nil, eris.New("analysis: cached entry has no summary")
	}
	return result.Summary, nil
}

// rate produces a bounded rating. An out-of-bound score triggers exactly one
// stricter follow-up turn; a second out-of-bound score fails the listing. The
// score is never clamped into range.
func (p *Pipeline) rate(ctx context.Context, listingID, fingerprint, input string, opts Options) (*model.RatingResult, error) {
	key := model.ResultKey{
		ListingID:     listingID,
		Fingerprint:   fingerprint,
		PromptVersion: p.ratingVersion(opts),
		Model:         p.model,
	}

	result, err := p.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*model.AIResult, error) {
		system := renderRatingSystem(p.cfg.RatingPrompt, p.cfg.FocusAreas, p.cfg.RatingMin, p.cfg.RatingMax)
		messages := []anthropic.Message{{Role: "user", Content: input}}

		resp, err := p.complete(ctx, anthropic.MessageRequest{
			Model:       p.model,
			MaxTokens:   p.cfg.MaxTokens,
			System:      system,
			Messages:    messages,
			Temperature: &p.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		resp.Usage.LogCost(p.model, "rate")

		score, err := parseRating(resp.Text)
		if err == nil && p.inBounds(score) {
			return &model.AIResult{Rating: &model.RatingResult{Score: score}}, nil
		}

		p.log.Warn("rating outside bounds, retrying with stricter instruction",
			zap.String("listing_id", listingID),
			zap.Float64("score", score),
			zap.NamedError("parse_err", err))

		messages = append(messages,
			anthropic.Message{Role: "assistant", Content: resp.Text},
			anthropic.Message{Role: "user", Content: strictRatingReminder(p.cfg.RatingMin, p.cfg.RatingMax)})

		resp, err = p.complete(ctx, anthropic.MessageRequest{
			Model:       p.model,
			MaxTokens:   p.cfg.MaxTokens,
			System:      system,
			Messages:    messages,
			Temperature: &p.cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		resp.Usage.LogCost(p.model, "rate")

		score, err = parseRating(resp.Text)
		if err != nil {
			return nil, err
		}
		if !p.inBounds(score) {
			return nil, eris.Errorf("analysis: rating %.2f outside bounds %g..%g after strict retry",
				score, p.cfg.RatingMin, p.cfg.RatingMax)
		}
		return &model.AIResult{Rating: &model.RatingResult{Score: score}}, nil
	})
	if err != nil {
		return nil, err
	}
	if result.Rating == nil {
		return nil, eris.New("analysis: cached entry has no rating")
	}
	return result.Rating, nil
}

// complete calls the LLM under the retry policy. Transient API failures are
// retried with backoff; everything else fails immediately.
func (p *Pipeline) complete(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	retry := p.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", "create_message")
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.llm.CreateMessage(ctx, req)
	})
}

func (p *Pipeline) fetchRetry() resilience.RetryConfig {
	retry := p.retry
	retry.OnRetry = resilience.RetryLogger("stayapi", "fetch_reviews")
	return retry
}

func (p *Pipeline) inBounds(score float64) bool {
	return score >= p.cfg.RatingMin && score <= p.cfg.RatingMax
}

func summaryText(s *model.SummaryResult) string {
	var parts []string
	for _, f := range s.Focuses {
		for _, b := range f.Bullets {
			parts = append(parts, f.Focus+": "+b)
		}
	}
	if len(parts) == 0 {
		return "No summary points available."
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}
