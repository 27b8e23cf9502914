package services

import (
	"context"
	"fmt"

	. "aktis-analytics-jira/internal/common"
	. "aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// FetchStats describes one completed paging run
type FetchStats struct {
	Pages   int `json:"pages"`
	Fetched int `json:"fetched"`
}

// Fetcher pages through a search sequentially until the result set is
// exhausted. It never deduplicates; repeated records are the
// normalizer's concern.
type Fetcher struct {
	source   PageSource
	pageSize int
	logger   arbor.ILogger
}

func NewFetcher(source PageSource, pageSize int, logger arbor.ILogger) *Fetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Fetcher{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchAll returns every raw issue matching query. Paging stops on an
// empty page, a page shorter than the requested size, isLast, or once the
// reported total is reached. Any failed page aborts the run with a
// fetch_failed error and no partial result.
func (f *Fetcher) FetchAll(ctx context.Context, query string) ([]models.RawIssue, FetchStats, error) {
	var (
		all    []models.RawIssue
		stats  FetchStats
		cursor bool
		req    = models.PageRequest{JQL: query, MaxResults: f.pageSize}
	)
	if pager, ok := f.source.(CursorPager); ok {
		cursor = pager.CursorPaging()
	}

	for {
		page, err := f.source.SearchPage(ctx, req)
		if err != nil {
			f.logger.Error().
				Err(err).
				Int("page", stats.Pages+1).
				Int("start_at", req.StartAt).
				Msg("Search page failed")
			return nil, stats, WrapError(err, ErrorTypeFetchFailed, "PAGE_FAILED", fmt.Sprintf("page %d failed", stats.Pages+1)).
				WithContext("start_at", req.StartAt).
				WithContext("fetched", len(all))
		}

		stats.Pages++
		returned := len(page.Issues)
		all = append(all, page.Issues...)
		stats.Fetched = len(all)

		// the server may cap maxResults below what was asked for
		size := f.pageSize
		if page.MaxResults > 0 && page.MaxResults < size {
			size = page.MaxResults
		}
		if returned == 0 || page.IsLast || returned < size {
			break
		}
		if page.Total != nil && len(all) >= *page.Total {
			break
		}

		if page.NextPageToken != "" {
			if page.NextPageToken == req.NextPageToken {
				f.logger.Warn().Str("token", page.NextPageToken).Msg("Search repeated its page token, stopping")
				break
			}
			cursor = true
			req.NextPageToken = page.NextPageToken
		} else if cursor {
			// cursor endpoints ignore startAt, so a missing token is the end
			break
		}
		req.StartAt += returned
	}

	f.logger.Info().
		Str("query", query).
		Int("pages", stats.Pages).
		Int("fetched", stats.Fetched).
		Msg("Fetch complete")

	return all, stats, nil
}
