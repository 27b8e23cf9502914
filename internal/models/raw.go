package models

// RawIssue is a single issue payload as returned by the Jira search API.
// Fields is left untyped on purpose; only the normalizer reads it.
type RawIssue struct {
	ID        string                 `json:"id"`
	Key       string                 `json:"key"`
	Self      string                 `json:"self"`
	Fields    map[string]interface{} `json:"fields"`
	Changelog *RawChangelog          `json:"changelog,omitempty"`
}

// RawChangelog is the expand=changelog block of a search result
type RawChangelog struct {
	StartAt    int          `json:"startAt"`
	MaxResults int          `json:"maxResults"`
	Total      int          `json:"total"`
	Histories  []RawHistory `json:"histories"`
}

type RawHistory struct {
	ID      string           `json:"id"`
	Created string           `json:"created"`
	Items   []RawHistoryItem `json:"items"`
}

type RawHistoryItem struct {
	Field      string `json:"field"`
	FieldType  string `json:"fieldtype"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// SearchPage is one page of search results. Total is nil when the
// endpoint does not report it (the cursor based /search/jql endpoint).
type SearchPage struct {
	StartAt       int        `json:"startAt"`
	MaxResults    int        `json:"maxResults"`
	Total         *int       `json:"total,omitempty"`
	IsLast        bool       `json:"isLast"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
	Issues        []RawIssue `json:"issues"`
}

// PageRequest identifies the page to fetch
type PageRequest struct {
	JQL           string
	StartAt       int
	MaxResults    int
	NextPageToken string
}
