package services

import (
	"context"
	"errors"
	"testing"

	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

func TestPipelineLoad(t *testing.T) {
	logger := arbor.NewLogger()
	source := &pagedSource{pages: []*models.SearchPage{
		{Issues: []models.RawIssue{rawWith("PROJ-1", nil), rawWith("PROJ-2", nil)}},
		{Issues: []models.RawIssue{rawWith("PROJ-2", nil), rawWith("PROJ-3", func(f map[string]interface{}) { delete(f, "created") })}},
		{IsLast: true, Issues: []models.RawIssue{rawWith("PROJ-4", nil)}},
	}}
	pipeline := NewPipeline(NewFetcher(source, 2, logger), testNormalizer(), logger)

	issues, diag, err := pipeline.Load(context.Background(), "parent = EPIC-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var keys []string
	for _, issue := range issues {
		keys = append(keys, issue.Key)
	}
	if len(keys) != 3 || keys[0] != "PROJ-1" || keys[1] != "PROJ-2" || keys[2] != "PROJ-4" {
		t.Errorf("Unexpected issues %v", keys)
	}
	if diag.RunID == "" || diag.Query != "parent = EPIC-1" {
		t.Errorf("Expected run id and query, got %+v", diag)
	}
	if diag.Pages != 3 || diag.Fetched != 5 || diag.Skipped != 1 || diag.Duplicates != 1 {
		t.Errorf("Unexpected diagnostics %+v", diag)
	}
}

func TestPipelineLoadFailure(t *testing.T) {
	logger := arbor.NewLogger()
	source := &pagedSource{failAt: 1}
	pipeline := NewPipeline(NewFetcher(source, 2, logger), testNormalizer(), logger)

	issues, _, err := pipeline.Load(context.Background(), "q")
	if issues != nil {
		t.Errorf("Expected no issues, got %d", len(issues))
	}
	if !common.IsErrorType(err, common.ErrorTypeFetchFailed) {
		t.Errorf("Expected fetch_failed, got %v", err)
	}
	var engineErr *common.EngineError
	if !errors.As(err, &engineErr) || engineErr.Code != "PAGE_FAILED" {
		t.Errorf("Expected PAGE_FAILED, got %v", err)
	}
}
