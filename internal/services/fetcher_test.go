package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// pagedSource serves a fixed list of pages and records each request
type pagedSource struct {
	pages    []*models.SearchPage
	failAt   int
	requests []models.PageRequest
}

func (s *pagedSource) SearchPage(ctx context.Context, req models.PageRequest) (*models.SearchPage, error) {
	s.requests = append(s.requests, req)
	call := len(s.requests)
	if s.failAt > 0 && call == s.failAt {
		return nil, errors.New("connection reset by peer")
	}
	if call > len(s.pages) {
		return &models.SearchPage{}, nil
	}
	return s.pages[call-1], nil
}

func rawIssues(from, count int) []models.RawIssue {
	out := make([]models.RawIssue, count)
	for i := range out {
		n := from + i
		out[i] = models.RawIssue{ID: fmt.Sprint(10000 + n), Key: fmt.Sprintf("PROJ-%d", n)}
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestFetchAllStopsOnShortPage(t *testing.T) {
	source := &pagedSource{pages: []*models.SearchPage{
		{StartAt: 0, MaxResults: 50, Total: intPtr(80), Issues: rawIssues(1, 50)},
		{StartAt: 50, MaxResults: 50, Total: intPtr(80), Issues: rawIssues(51, 30)},
	}}

	fetcher := NewFetcher(source, 50, arbor.NewLogger())
	raws, stats, err := fetcher.FetchAll(context.Background(), "parent = EPIC-1")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(raws) != 80 {
		t.Errorf("Expected 80 issues, got %d", len(raws))
	}
	if stats.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", stats.Pages)
	}
	if len(source.requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(source.requests))
	}
	if source.requests[1].StartAt != 50 {
		t.Errorf("Expected second page at startAt 50, got %d", source.requests[1].StartAt)
	}
	if source.requests[0].JQL != "parent = EPIC-1" {
		t.Errorf("Expected query to be forwarded, got %q", source.requests[0].JQL)
	}
}

func TestFetchAllStopsAtTotal(t *testing.T) {
	source := &pagedSource{pages: []*models.SearchPage{
		{Total: intPtr(4), Issues: rawIssues(1, 2)},
		{Total: intPtr(4), Issues: rawIssues(3, 2)},
		{Total: intPtr(4), Issues: rawIssues(5, 2)},
	}}

	fetcher := NewFetcher(source, 2, arbor.NewLogger())
	raws, _, err := fetcher.FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 4 {
		t.Errorf("Expected 4 issues, got %d", len(raws))
	}
	if len(source.requests) != 2 {
		t.Errorf("Expected paging to stop after 2 requests, got %d", len(source.requests))
	}
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	source := &pagedSource{pages: []*models.SearchPage{
		{Issues: rawIssues(1, 3)},
		{Issues: nil},
	}}

	raws, stats, err := NewFetcher(source, 3, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 3 || stats.Pages != 2 {
		t.Errorf("Expected 3 issues over 2 pages, got %d over %d", len(raws), stats.Pages)
	}
}

func TestFetchAllHonorsServerPageCap(t *testing.T) {
	// asked for 100, server caps at 50
	source := &pagedSource{pages: []*models.SearchPage{
		{MaxResults: 50, Issues: rawIssues(1, 50)},
		{MaxResults: 50, Issues: rawIssues(51, 50)},
		{MaxResults: 50, Issues: rawIssues(101, 10)},
	}}

	raws, _, err := NewFetcher(source, 100, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 110 {
		t.Errorf("Expected 110 issues, got %d", len(raws))
	}
}

func TestFetchAllFollowsCursor(t *testing.T) {
	source := &pagedSource{pages: []*models.SearchPage{
		{NextPageToken: "tok-2", Issues: rawIssues(1, 2)},
		{NextPageToken: "tok-3", Issues: rawIssues(3, 2)},
		{IsLast: true, Issues: rawIssues(5, 2)},
	}}

	raws, stats, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 6 || stats.Pages != 3 {
		t.Errorf("Expected 6 issues over 3 pages, got %d over %d", len(raws), stats.Pages)
	}
	if source.requests[0].NextPageToken != "" {
		t.Errorf("First request must not carry a token, got %q", source.requests[0].NextPageToken)
	}
	if source.requests[1].NextPageToken != "tok-2" || source.requests[2].NextPageToken != "tok-3" {
		t.Errorf("Tokens not forwarded: %+v", source.requests)
	}
}

func TestFetchAllCursorWithoutTokenEnds(t *testing.T) {
	source := &pagedSource{pages: []*models.SearchPage{
		{NextPageToken: "tok-2", Issues: rawIssues(1, 2)},
		{Issues: rawIssues(3, 2)},
		{Issues: rawIssues(5, 2)},
	}}

	raws, _, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 4 {
		t.Errorf("Expected 4 issues, got %d", len(raws))
	}
}

// cursorSource is a pagedSource that declares token paging
type cursorSource struct {
	pagedSource
}

func (s *cursorSource) CursorPaging() bool { return true }

func TestFetchAllCursorSourceStopsOnFullPageWithoutToken(t *testing.T) {
	source := &cursorSource{pagedSource{pages: []*models.SearchPage{
		{Issues: rawIssues(1, 2)},
		{Issues: rawIssues(1, 2)},
		{Issues: rawIssues(1, 2)},
	}}}

	raws, stats, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(source.requests) != 1 || stats.Pages != 1 {
		t.Errorf("Expected a single request, got %d", len(source.requests))
	}
	if len(raws) != 2 {
		t.Errorf("Expected 2 issues, got %d", len(raws))
	}
}

func TestFetchAllStopsOnRepeatedToken(t *testing.T) {
	source := &cursorSource{pagedSource{pages: []*models.SearchPage{
		{NextPageToken: "tok-2", Issues: rawIssues(1, 2)},
		{NextPageToken: "tok-2", Issues: rawIssues(3, 2)},
		{NextPageToken: "tok-2", Issues: rawIssues(5, 2)},
	}}}

	raws, _, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(source.requests) != 2 || len(raws) != 4 {
		t.Errorf("Expected to stop after the repeated token, got %d requests and %d issues", len(source.requests), len(raws))
	}
}

func TestFetchAllKeepsDuplicatesAcrossPages(t *testing.T) {
	// a record that shifts between pages appears twice; the normalizer drops it
	source := &pagedSource{pages: []*models.SearchPage{
		{Total: intPtr(4), Issues: rawIssues(1, 2)},
		{Total: intPtr(4), Issues: rawIssues(2, 2)},
	}}

	raws, _, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(raws) != 4 {
		t.Fatalf("Expected 4 raw records, got %d", len(raws))
	}

	keys := make(map[string]int)
	for _, raw := range raws {
		keys[raw.Key]++
	}
	if keys["PROJ-2"] != 2 {
		t.Errorf("Expected PROJ-2 twice, got %d", keys["PROJ-2"])
	}
}

func TestFetchAllFailedPageAbortsRun(t *testing.T) {
	source := &pagedSource{
		pages: []*models.SearchPage{
			{Total: intPtr(6), Issues: rawIssues(1, 2)},
			{Total: intPtr(6), Issues: rawIssues(3, 2)},
		},
		failAt: 2,
	}

	raws, stats, err := NewFetcher(source, 2, arbor.NewLogger()).FetchAll(context.Background(), "q")
	if err == nil {
		t.Fatal("Expected an error")
	}
	if raws != nil {
		t.Errorf("Expected no partial result, got %d issues", len(raws))
	}
	if !common.IsErrorType(err, common.ErrorTypeFetchFailed) {
		t.Errorf("Expected fetch_failed error, got %v", err)
	}
	if stats.Pages != 1 {
		t.Errorf("Expected 1 completed page, got %d", stats.Pages)
	}
}
