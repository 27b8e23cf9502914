package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	. "aktis-analytics-jira/internal/common"
	. "aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
)

// searchFields is the field list requested for every issue
var searchFields = []string{
	"summary",
	"status",
	"priority",
	"assignee",
	"reporter",
	"created",
	"updated",
	"resolutiondate",
	"resolution",
	"fixVersions",
	"parent",
	"issuetype",
	"labels",
	"components",
	"timespent",
	"timeestimate",
	"timeoriginalestimate",
	"timetracking",
	"description",
}

type jiraClient struct {
	client         *resty.Client
	baseURL        string
	searchPath     string
	cursorPaging   bool
	includeHistory bool
	logger         arbor.ILogger
}

var _ CursorPager = (*jiraClient)(nil)

func NewJiraClient(config *JiraConfig, logger arbor.ILogger) JiraClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(time.Duration(config.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", UserAgent()).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(retryable)

	if config.Username != "" && config.APIToken != "" {
		client.SetBasicAuth(config.Username, config.APIToken)
	}

	return &jiraClient{
		client:         client,
		baseURL:        config.BaseURL,
		searchPath:     config.SearchPath,
		cursorPaging:   strings.HasSuffix(config.SearchPath, "/jql"),
		includeHistory: config.IncludeHistory,
		logger:         logger,
	}
}

// retryable spends the retry budget on transport errors, rate limiting and
// server errors. Client errors such as 401 fail immediately.
func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError
}

// CursorPaging reports whether the configured search endpoint pages by
// nextPageToken
func (jc *jiraClient) CursorPaging() bool {
	return jc.cursorPaging
}

func (jc *jiraClient) SearchPage(ctx context.Context, req models.PageRequest) (*models.SearchPage, error) {
	var page models.SearchPage

	r := jc.client.R().
		SetContext(ctx).
		SetQueryParam("jql", req.JQL).
		SetQueryParam("maxResults", strconv.Itoa(req.MaxResults)).
		SetQueryParam("fields", strings.Join(searchFields, ",")).
		SetResult(&page)

	if jc.cursorPaging {
		if req.NextPageToken != "" {
			r.SetQueryParam("nextPageToken", req.NextPageToken)
		}
	} else {
		r.SetQueryParam("startAt", strconv.Itoa(req.StartAt))
	}

	if jc.includeHistory {
		r.SetQueryParam("expand", "changelog")
	}

	resp, err := r.Get(jc.searchPath)
	if err != nil {
		return nil, WrapError(err, ErrorTypeJira, "SEARCH_REQUEST", "failed to search issues")
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, NewJiraError("SEARCH_STATUS", fmt.Sprintf("Jira API returned status %d", resp.StatusCode())).
			WithDetails(truncate(resp.String(), 512)).
			WithContext("status", resp.StatusCode())
	}

	jc.logger.Debug().
		Int("start_at", req.StartAt).
		Int("returned", len(page.Issues)).
		Str("next_page_token", page.NextPageToken).
		Msg("Fetched search page")

	return &page, nil
}

// TestConnection checks credentials against /rest/api/3/myself
func (jc *jiraClient) TestConnection(ctx context.Context) (*JiraUser, error) {
	var user JiraUser

	resp, err := jc.client.R().
		SetContext(ctx).
		SetResult(&user).
		Get("/rest/api/3/myself")
	if err != nil {
		return nil, WrapError(err, ErrorTypeJira, "CONNECTION", "failed to reach Jira")
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, NewJiraError("CONNECTION_STATUS", fmt.Sprintf("Jira API returned status %d", resp.StatusCode())).
			WithContext("status", resp.StatusCode())
	}

	return &user, nil
}

// BuildJQL returns the default query: every child of the configured epics,
// ordered the way release planning reads them.
func BuildJQL(epics []string) string {
	return fmt.Sprintf("parent IN (%s) ORDER BY fixVersion ASC, rank", strings.Join(epics, ", "))
}

// DefaultQuery prefers an explicit JQL over the epic-derived one
func DefaultQuery(config *JiraConfig) string {
	if config.JQL != "" {
		return config.JQL
	}
	return BuildJQL(config.Epics)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
