package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Service   ServiceConfig   `toml:"service"`
	Jira      JiraConfig      `toml:"jira"`
	Analytics AnalyticsConfig `toml:"analytics"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServiceConfig struct {
	Name        string   `toml:"name"`
	Environment string   `toml:"environment"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type JiraConfig struct {
	BaseURL        string   `toml:"base_url"`
	Username       string   `toml:"username"`
	APIToken       string   `toml:"api_token"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	SearchPath     string   `toml:"search_path"`
	PageSize       int      `toml:"page_size"`
	RetryCount     int      `toml:"retry_count"`
	IncludeHistory bool     `toml:"include_history"`
	Epics          []string `toml:"epics"`
	JQL            string   `toml:"jql"`
}

type AnalyticsConfig struct {
	CacheTTLSeconds     int      `toml:"cache_ttl_seconds"`
	StuckRedDays        int      `toml:"stuck_red_days"`
	StuckYellowDays     int      `toml:"stuck_yellow_days"`
	ExcludedResolutions []string `toml:"excluded_resolutions"`
	ExcludedStatuses    []string `toml:"excluded_statuses"`
	DefaultPriorities   []string `toml:"default_priorities"`
}

type StorageConfig struct {
	// SnapshotPath enables the last-known-good snapshot store. Empty
	// disables it.
	SnapshotPath string `toml:"snapshot_path"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
	// Directory for the log file; empty means logs/ next to the executable
	Directory  string `toml:"directory"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	return &Config{
		Service: ServiceConfig{
			Name:        execName,
			Environment: "development",
			Port:        8080,
		},
		Jira: JiraConfig{
			BaseURL:        "https://kaptio.atlassian.net",
			TimeoutSeconds: 30,
			SearchPath:     "/rest/api/3/search/jql",
			PageSize:       100,
			RetryCount:     3,
			IncludeHistory: false,
			Epics:          []string{"ST-1746", "ST-2049"},
		},
		Analytics: AnalyticsConfig{
			CacheTTLSeconds:     300,
			StuckRedDays:        7,
			StuckYellowDays:     3,
			ExcludedResolutions: []string{"Rejected", "Duplicate", "Won't Fix", "Won't Do", "Cancelled"},
			ExcludedStatuses:    []string{"Rejected", "Won't Fix", "Cancelled", "Won't Do"},
			DefaultPriorities:   []string{"Blocker", "Critical"},
		},
		Storage: StorageConfig{
			SnapshotPath: filepath.Join(execDir, "data", execName+".db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig applies defaults, then the TOML file, then .env and process
// environment overrides.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, WrapError(err, ErrorTypeConfiguration, "CONFIG_READ", fmt.Sprintf("failed to read config file %s", configFile))
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, WrapError(err, ErrorTypeConfiguration, "CONFIG_PARSE", "failed to parse config file")
		}
	}

	// Missing .env is normal outside development
	_ = godotenv.Load()

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if baseURL := os.Getenv("JIRA_BASE_URL"); baseURL != "" {
		config.Jira.BaseURL = baseURL
	}
	if username := os.Getenv("JIRA_USERNAME"); username != "" {
		config.Jira.Username = username
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		config.Jira.APIToken = token
	}
	if epics := os.Getenv("JIRA_EPICS"); epics != "" {
		config.Jira.Epics = splitList(epics)
	}
	if jql := os.Getenv("JIRA_JQL"); jql != "" {
		config.Jira.JQL = jql
	}

	if ttl := os.Getenv("CACHE_TTL_SECONDS"); ttl != "" {
		if seconds, err := strconv.Atoi(ttl); err == nil {
			config.Analytics.CacheTTLSeconds = seconds
		}
	}

	if snapshotPath, ok := os.LookupEnv("SNAPSHOT_PATH"); ok {
		config.Storage.SnapshotPath = snapshotPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		config.Logging.Format = logFormat
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}
	if logDir := os.Getenv("LOG_DIR"); logDir != "" {
		config.Logging.Directory = logDir
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.Service.CORSOrigins = splitList(origins)
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Service.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Jira.BaseURL == "" {
		return NewConfigurationError("JIRA_BASE_URL", "jira base_url is required")
	}
	if len(c.Jira.Epics) == 0 && c.Jira.JQL == "" {
		return NewConfigurationError("JIRA_SCOPE", "at least one epic or an explicit jql is required")
	}

	if c.Service.Port <= 0 {
		c.Service.Port = 8080
	}
	if c.Jira.PageSize <= 0 {
		c.Jira.PageSize = 100
	}
	if c.Jira.TimeoutSeconds <= 0 {
		c.Jira.TimeoutSeconds = 30
	}
	if c.Jira.RetryCount < 0 {
		c.Jira.RetryCount = 0
	}
	if c.Jira.SearchPath == "" {
		c.Jira.SearchPath = "/rest/api/3/search/jql"
	}

	if c.Analytics.CacheTTLSeconds <= 0 {
		c.Analytics.CacheTTLSeconds = 300
	}
	if c.Analytics.StuckRedDays <= 0 {
		c.Analytics.StuckRedDays = 7
	}
	if c.Analytics.StuckYellowDays <= 0 {
		c.Analytics.StuckYellowDays = 3
	}
	if c.Analytics.StuckYellowDays > c.Analytics.StuckRedDays {
		return NewConfigurationError("STUCK_THRESHOLDS", "stuck_yellow_days must not exceed stuck_red_days").
			WithContext("yellow", c.Analytics.StuckYellowDays).
			WithContext("red", c.Analytics.StuckRedDays)
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, c.Logging.Level) {
		return NewConfigurationError("LOG_LEVEL", fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}

	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return NewConfigurationError("LOG_FORMAT", fmt.Sprintf("invalid log format: %s", c.Logging.Format))
	}

	validOutputs := []string{"console", "file", "both"}
	if !contains(validOutputs, c.Logging.Output) {
		return NewConfigurationError("LOG_OUTPUT", fmt.Sprintf("invalid log output: %s", c.Logging.Output))
	}

	return nil
}

// HasCredentials reports whether basic auth credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Jira.Username != "" && c.Jira.APIToken != ""
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
