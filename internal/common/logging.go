package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const logFileName = "aktis-analytics-jira.log"

var (
	logger  arbor.ILogger
	logPath string
	mu      sync.RWMutex
)

// GetLogger returns the process logger, creating a default one on first use
func GetLogger() arbor.ILogger {
	mu.RLock()
	if logger != nil {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if logger == nil {
		logger = initDefaultLogger()
	}
	return logger
}

// GetLogFilePath returns the file the logger writes to, or where it would
// write with the default configuration
func GetLogFilePath() string {
	mu.RLock()
	currentLogger, path := logger, logPath
	mu.RUnlock()

	if currentLogger != nil {
		if p := currentLogger.GetLogFilePath(); p != "" {
			return p
		}
	}
	if path != "" {
		return path
	}
	return filepath.Join(logDirectory(DefaultLoggingConfig()), logFileName)
}

// InitLogger builds the process logger once. Later calls are no-ops so the
// logger configured at startup survives.
func InitLogger(config *LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return nil
	}

	l, path, err := createLogger(config)
	if err != nil {
		return err
	}
	logger, logPath = l, path
	return nil
}

func initDefaultLogger() arbor.ILogger {
	l, path, err := createLogger(DefaultLoggingConfig())
	if err != nil {
		fmt.Printf("Warning: Failed to initialize default logger: %v\n", err)
		return arbor.NewLogger()
	}
	logPath = path
	return l
}

// logDirectory is the configured directory, or logs/ next to the executable
func logDirectory(config *LoggingConfig) string {
	if config.Directory != "" {
		return config.Directory
	}
	execPath, err := os.Executable()
	if err != nil {
		return "logs"
	}
	return filepath.Join(filepath.Dir(execPath), "logs")
}

func createLogger(config *LoggingConfig) (arbor.ILogger, string, error) {
	l := arbor.NewLogger()
	textOutput := config.Format != "json"
	path := ""

	if config.Output == "both" || config.Output == "file" || config.Output == "" {
		dir := logDirectory(config)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, "", fmt.Errorf("failed to create logs directory: %w", err)
		}
		path = filepath.Join(dir, logFileName)

		l = l.WithFileWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeFile,
			FileName:         path,
			TimeFormat:       "15:04:05",
			MaxSize:          int64(config.MaxSize * 1024 * 1024), // MB
			MaxBackups:       config.MaxBackups,
			TextOutput:       textOutput,
			DisableTimestamp: false,
		})
	}

	// -report writes JSON to stdout, so it always runs with Output "file"
	if config.Output == "both" || config.Output == "console" || config.Output == "" {
		l = l.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       textOutput,
			DisableTimestamp: false,
		})
	}

	l = l.WithLevelFromString(config.Level)

	l.Debug().
		Str("level", config.Level).
		Str("output", config.Output).
		Str("file", path).
		Msg("Analytics logger initialized")

	return l, path, nil
}

func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:      "info",
		Format:     "text",
		Output:     "both",
		MaxSize:    100,
		MaxBackups: 3,
	}
}
