package services

import (
	"context"
	"time"

	"aktis-analytics-jira/internal/models"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// Pipeline runs fetch then normalize for one query. It is the loader the
// cache calls on a miss, an expiry or a forced refresh.
type Pipeline struct {
	fetcher    *Fetcher
	normalizer *Normalizer
	logger     arbor.ILogger
}

func NewPipeline(fetcher *Fetcher, normalizer *Normalizer, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Load returns the canonical issue set in fetch order with its diagnostics.
// The only error it returns is a fetch failure.
func (p *Pipeline) Load(ctx context.Context, query string) ([]models.Issue, models.Diagnostics, error) {
	runID := uuid.New().String()
	start := time.Now()

	p.logger.Info().Str("run_id", runID).Str("query", query).Msg("Refreshing issue set")

	raws, stats, err := p.fetcher.FetchAll(ctx, query)
	if err != nil {
		return nil, models.Diagnostics{RunID: runID, Query: query, Pages: stats.Pages}, err
	}

	issues, diag := p.normalizer.NormalizeBatch(raws)
	diag.RunID = runID
	diag.Query = query
	diag.Pages = stats.Pages

	p.logger.Info().
		Str("run_id", runID).
		Int("pages", diag.Pages).
		Int("fetched", diag.Fetched).
		Int("normalized", diag.Normalized).
		Int("skipped", diag.Skipped).
		Int("duplicates", diag.Duplicates).
		Str("fingerprint", diag.Fingerprint).
		Dur("duration", time.Since(start)).
		Msg("Issue set refreshed")

	return issues, diag, nil
}
