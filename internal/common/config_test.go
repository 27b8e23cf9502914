package common

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// clearEnv neutralizes overrides the host environment might carry
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"JIRA_BASE_URL", "JIRA_USERNAME", "JIRA_API_TOKEN", "JIRA_EPICS", "JIRA_JQL",
		"CACHE_TTL_SECONDS", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT", "LOG_DIR", "SERVER_PORT",
		"CORS_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("SNAPSHOT_PATH", filepath.Join(t.TempDir(), "snapshots.db"))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[jira]
base_url = "https://example.atlassian.net"
epics = ["PROJ-1"]
page_size = 50

[analytics]
stuck_red_days = 10
stuck_yellow_days = 5
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Jira.BaseURL != "https://example.atlassian.net" || config.Jira.PageSize != 50 {
		t.Errorf("Unexpected jira config %+v", config.Jira)
	}
	if !reflect.DeepEqual(config.Jira.Epics, []string{"PROJ-1"}) {
		t.Errorf("Unexpected epics %v", config.Jira.Epics)
	}
	if config.Analytics.StuckRedDays != 10 || config.Analytics.StuckYellowDays != 5 {
		t.Errorf("Unexpected thresholds %+v", config.Analytics)
	}
	if config.Analytics.CacheTTLSeconds != 300 || config.Jira.SearchPath != "/rest/api/3/search/jql" {
		t.Error("Expected defaults for keys the file leaves out")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_EPICS", "PROJ-1, PROJ-2,")
	t.Setenv("CACHE_TTL_SECONDS", "60")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ORIGINS", "https://dash.example.com")
	t.Setenv("SNAPSHOT_PATH", "")

	config, err := LoadConfig(writeConfig(t, "[jira]\nbase_url = \"https://example.atlassian.net\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !reflect.DeepEqual(config.Jira.Epics, []string{"PROJ-1", "PROJ-2"}) {
		t.Errorf("Unexpected epics %v", config.Jira.Epics)
	}
	if config.Analytics.CacheTTLSeconds != 60 || config.Service.Port != 9090 {
		t.Errorf("Overrides not applied: ttl %d port %d", config.Analytics.CacheTTLSeconds, config.Service.Port)
	}
	if !reflect.DeepEqual(config.Service.CORSOrigins, []string{"https://dash.example.com"}) {
		t.Errorf("Unexpected CORS origins %v", config.Service.CORSOrigins)
	}
	if config.Storage.SnapshotPath != "" {
		t.Errorf("Expected an empty SNAPSHOT_PATH to disable snapshots, got %q", config.Storage.SnapshotPath)
	}
}

func TestLoadConfigParseError(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(writeConfig(t, "[jira\nbase_url = "))
	if !IsErrorType(err, ErrorTypeConfiguration) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.Jira.BaseURL = "" }, "JIRA_BASE_URL"},
		{"no scope", func(c *Config) { c.Jira.Epics = nil }, "JIRA_SCOPE"},
		{"jql scope", func(c *Config) { c.Jira.Epics = nil; c.Jira.JQL = "project = PROJ" }, ""},
		{"inverted thresholds", func(c *Config) { c.Analytics.StuckYellowDays = 9 }, "STUCK_THRESHOLDS"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()

			if tt.code == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			var engineErr *EngineError
			if !errors.As(err, &engineErr) || engineErr.Code != tt.code {
				t.Errorf("Expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	config := DefaultConfig()
	config.Jira.PageSize = 0
	config.Analytics.CacheTTLSeconds = -1
	config.Jira.RetryCount = -2

	if err := config.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if config.Jira.PageSize != 100 || config.Analytics.CacheTTLSeconds != 300 || config.Jira.RetryCount != 0 {
		t.Errorf("Defaults not restored: %+v %+v", config.Jira, config.Analytics)
	}
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError(cause, ErrorTypeFetchFailed, "PAGE_FAILED", "page 3 failed")

	if !errors.Is(err, cause) {
		t.Error("Expected the cause to be reachable through Unwrap")
	}
	if !IsErrorType(err, ErrorTypeFetchFailed) || IsErrorType(err, ErrorTypeStorage) {
		t.Errorf("Unexpected type check for %v", err)
	}
	if IsErrorType(cause, ErrorTypeFetchFailed) {
		t.Error("A plain error has no engine type")
	}
}

func TestDataIntegrityErrorContext(t *testing.T) {
	err := NewDataIntegrityError("CLAMPED_DURATIONS", "negative durations clamped to zero").
		WithContext("query", "parent IN (EPIC-1)").
		WithContext("clamped", 2)

	if !IsErrorType(err, ErrorTypeDataIntegrity) {
		t.Errorf("Expected a data integrity error, got %v", err.Type)
	}
	if err.Context["clamped"] != 2 || err.Context["query"] != "parent IN (EPIC-1)" {
		t.Errorf("Context not recorded: %+v", err.Context)
	}
}
