package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	. "aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/models"
	"aktis-analytics-jira/internal/richtext"

	"github.com/ternarybob/arbor"
)

// Jira emits "2024-01-15T10:30:00.000+0000"; the others cover server
// variants and date-only fields.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// Normalizer converts raw payloads into canonical issues. It holds only
// configuration, so Normalize is pure and safe for concurrent use.
type Normalizer struct {
	baseURL string
	epics   map[string]bool
	logger  arbor.ILogger
}

func NewNormalizer(baseURL string, epics []string, logger arbor.ILogger) *Normalizer {
	set := make(map[string]bool, len(epics))
	for _, e := range epics {
		set[e] = true
	}
	return &Normalizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		epics:   set,
		logger:  logger,
	}
}

// Normalize validates the required fields (key, priority, status, created)
// and extracts the canonical record. A missing required field yields a
// malformed_record error.
func (n *Normalizer) Normalize(raw models.RawIssue) (models.Issue, error) {
	key := strings.TrimSpace(raw.Key)
	if key == "" {
		return models.Issue{}, malformed(raw.ID, "key")
	}

	fields := raw.Fields
	priority := n.getName(fields["priority"])
	if priority == "" {
		return models.Issue{}, malformed(key, "priority")
	}
	status := n.getName(fields["status"])
	if status == "" {
		return models.Issue{}, malformed(key, "status")
	}
	created, ok := n.getTime(fields["created"])
	if !ok {
		return models.Issue{}, malformed(key, "created")
	}

	issue := models.Issue{
		Key:            key,
		URL:            n.baseURL + "/browse/" + key,
		IssueType:      n.getName(fields["issuetype"]),
		Priority:       models.Priority(priority),
		Status:         status,
		StatusCategory: models.CategoryFor(status, n.getStatusCategory(fields["status"])),
		Resolution:     n.getName(fields["resolution"]),
		Reporter:       n.getPersonName(fields["reporter"]),
		Summary:        strings.TrimSpace(n.getString(fields["summary"])),
		Created:        created,
		Updated:        created,
		Labels:         n.getLabels(fields["labels"]),
		Components:     n.getNames(fields["components"]),
		FixVersions:    n.getNames(fields["fixVersions"]),
	}

	if id, err := strconv.ParseInt(raw.ID, 10, 64); err == nil {
		issue.ID = id
	}
	if issue.Reporter == "" {
		issue.Reporter = "Unknown"
	}
	if assignee := n.getPersonName(fields["assignee"]); assignee != "" {
		issue.Assignee = &assignee
	}
	if updated, ok := n.getTime(fields["updated"]); ok {
		issue.Updated = updated
	}
	if resolved, ok := n.getTime(fields["resolutiondate"]); ok {
		issue.Resolved = &resolved
	}
	if len(issue.FixVersions) > 0 {
		first := issue.FixVersions[0]
		issue.FixVersion = &first
	}
	if description, present := fields["description"]; present && description != nil {
		text := richtext.Flatten(description)
		issue.Description = &text
	}

	if parent, ok := fields["parent"].(map[string]interface{}); ok {
		issue.EpicKey = n.getString(parent["key"])
		if parentFields, ok := parent["fields"].(map[string]interface{}); ok {
			issue.EpicSummary = n.getString(parentFields["summary"])
		}
	}

	tracking, _ := fields["timetracking"].(map[string]interface{})
	issue.TimeSpentHours = n.getHours(fields["timespent"], tracking, "timeSpentSeconds")
	issue.TimeRemainingHours = n.getHours(fields["timeestimate"], tracking, "remainingEstimateSeconds")
	issue.OriginalEstimateHours = n.getHours(fields["timeoriginalestimate"], tracking, "originalEstimateSeconds")

	// A truncated changelog keeps its transitions but is not full history
	if raw.Changelog != nil {
		issue.HistoryAvailable = completeChangelog(raw.Changelog)
		issue.Transitions = n.getTransitions(raw.Changelog)
	}

	if !issue.Priority.Known() {
		issue.Unrecognized = append(issue.Unrecognized, "priority")
	}
	if !models.KnownStatus(issue.Status) {
		issue.Unrecognized = append(issue.Unrecognized, "status")
	}
	if !models.KnownResolution(issue.Resolution) {
		issue.Unrecognized = append(issue.Unrecognized, "resolution")
	}
	if len(n.epics) > 0 && !n.epics[issue.EpicKey] {
		issue.Unrecognized = append(issue.Unrecognized, "epic")
	}

	return issue, nil
}

// NormalizeBatch normalizes every payload, skipping malformed records and
// dropping repeated keys (first occurrence wins). Output order follows
// input order.
func (n *Normalizer) NormalizeBatch(raws []models.RawIssue) ([]models.Issue, models.Diagnostics) {
	issues := make([]models.Issue, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	diag := models.Diagnostics{Fetched: len(raws)}

	for _, raw := range raws {
		issue, err := n.Normalize(raw)
		if err != nil {
			diag.Skipped++
			ref := raw.Key
			if ref == "" {
				ref = "id:" + raw.ID
			}
			diag.SkippedKeys = append(diag.SkippedKeys, ref)
			n.logger.Warn().Err(err).Str("key", ref).Msg("Skipping malformed issue")
			continue
		}

		if seen[issue.Key] {
			diag.Duplicates++
			n.logger.Debug().Str("key", issue.Key).Msg("Dropping duplicate issue")
			continue
		}
		seen[issue.Key] = true

		if len(issue.Unrecognized) > 0 {
			diag.Unrecognized++
		}
		if raw.Changelog != nil && !issue.HistoryAvailable {
			diag.PartialHistory++
		}
		issues = append(issues, issue)
	}

	diag.Normalized = len(issues)
	diag.Fingerprint = fingerprint(issues)

	if diag.PartialHistory > 0 {
		n.logger.Warn().Int("issues", diag.PartialHistory).Msg("Changelogs truncated, time in status degraded for those issues")
	}

	if diag.Skipped > 0 || diag.Duplicates > 0 {
		n.logger.Warn().
			Int("skipped", diag.Skipped).
			Int("duplicates", diag.Duplicates).
			Int("normalized", diag.Normalized).
			Msg("Normalization dropped records")
	}

	return issues, diag
}

// completeChangelog reports whether every history entry is present. The
// search endpoint caps expanded changelogs per issue.
func completeChangelog(changelog *models.RawChangelog) bool {
	return changelog.StartAt == 0 && len(changelog.Histories) >= changelog.Total
}

func malformed(ref, field string) error {
	return NewMalformedRecordError("MISSING_FIELD", "required field "+field+" is missing or invalid").
		WithContext("issue", ref).
		WithContext("field", field)
}

func (n *Normalizer) getString(field interface{}) string {
	if str, ok := field.(string); ok {
		return str
	}
	return ""
}

// getName reads the "name" of a Jira object field such as priority
func (n *Normalizer) getName(field interface{}) string {
	if obj, ok := field.(map[string]interface{}); ok {
		if name, ok := obj["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func (n *Normalizer) getStatusCategory(field interface{}) string {
	status, ok := field.(map[string]interface{})
	if !ok {
		return ""
	}
	category, ok := status["statusCategory"].(map[string]interface{})
	if !ok {
		return ""
	}
	if key, ok := category["key"].(string); ok && key != "" {
		return key
	}
	return n.getString(category["name"])
}

func (n *Normalizer) getPersonName(field interface{}) string {
	if person, ok := field.(map[string]interface{}); ok {
		if name, ok := person["displayName"].(string); ok && name != "" {
			return name
		} else if email, ok := person["emailAddress"].(string); ok {
			return email
		}
	}
	return ""
}

func (n *Normalizer) getLabels(field interface{}) []string {
	if labels, ok := field.([]interface{}); ok {
		result := make([]string, 0, len(labels))
		for _, label := range labels {
			if str, ok := label.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}

// getNames collects the "name" of every object in a list field
// (components, fixVersions).
func (n *Normalizer) getNames(field interface{}) []string {
	if items, ok := field.([]interface{}); ok {
		result := make([]string, 0, len(items))
		for _, item := range items {
			if name := n.getName(item); name != "" {
				result = append(result, name)
			}
		}
		return result
	}
	return nil
}

func (n *Normalizer) getTime(field interface{}) (time.Time, bool) {
	str, ok := field.(string)
	if !ok || str == "" {
		return time.Time{}, false
	}
	return parseTime(str)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// getHours converts a seconds value to hours rounded to one decimal. The
// top-level field wins; timetracking is the fallback. Absent stays nil.
func (n *Normalizer) getHours(field interface{}, tracking map[string]interface{}, trackingKey string) *float64 {
	seconds, ok := toFloat(field)
	if !ok && tracking != nil {
		seconds, ok = toFloat(tracking[trackingKey])
	}
	if !ok {
		return nil
	}
	hours := math.Round(seconds/3600*10) / 10
	return &hours
}

func toFloat(v interface{}) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	}
	return 0, false
}

func (n *Normalizer) getTransitions(changelog *models.RawChangelog) []models.StatusTransition {
	var transitions []models.StatusTransition
	for _, history := range changelog.Histories {
		at, ok := parseTime(history.Created)
		if !ok {
			continue
		}
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}
			transitions = append(transitions, models.StatusTransition{
				At:   at,
				From: item.FromString,
				To:   item.ToString,
			})
		}
	}

	sort.SliceStable(transitions, func(i, j int) bool {
		return transitions[i].At.Before(transitions[j].At)
	})
	return transitions
}

// fingerprint identifies a result set by its keys and update stamps
func fingerprint(issues []models.Issue) string {
	type stamp struct {
		Key     string    `json:"k"`
		Updated time.Time `json:"u"`
	}
	stamps := make([]stamp, len(issues))
	for i, issue := range issues {
		stamps[i] = stamp{Key: issue.Key, Updated: issue.Updated}
	}

	jsonData, err := json.Marshal(stamps)
	if err != nil {
		return ""
	}

	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:8])
}
