package common

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner
func PrintBanner(cfg *Config, mode, logFile string) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorPurple).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")

	b.PrintTopLine()
	b.PrintCenteredText("AKTIS ANALYTICS - JIRA")
	b.PrintCenteredText("Issue Flow & Quality Metrics")
	b.PrintSeparatorLine()

	b.PrintKeyValue("Version", GetVersion(), 15)
	b.PrintKeyValue("Build", GetBuild(), 15)
	b.PrintKeyValue("Environment", cfg.Service.Environment, 15)
	b.PrintKeyValue("Mode", mode, 15)
	b.PrintKeyValue("Jira", cfg.Jira.BaseURL, 15)
	b.PrintBottomLine()

	fmt.Printf("\n")

	fmt.Printf("📋 Configuration:\n")
	if len(cfg.Jira.Epics) > 0 {
		fmt.Printf("   • Epics: %s\n", strings.Join(cfg.Jira.Epics, ", "))
	}
	fmt.Printf("   • Cache TTL: %ds\n", cfg.Analytics.CacheTTLSeconds)
	fmt.Printf("   • Stuck thresholds: yellow >%dd, red >%dd\n", cfg.Analytics.StuckYellowDays, cfg.Analytics.StuckRedDays)
	if cfg.Jira.IncludeHistory {
		fmt.Printf("   • Status history: enabled\n")
	} else {
		fmt.Printf("   • Status history: disabled (time-in-status degrades to age)\n")
	}
	if cfg.Storage.SnapshotPath != "" {
		fmt.Printf("   • Snapshot store: %s\n", cfg.Storage.SnapshotPath)
	}

	if logFile != "" {
		pattern := strings.Replace(logFile, ".log", ".{YYYY-MM-DDTHH-MM-SS}.log", 1)
		fmt.Printf("   • Log File: %s\n", pattern)
	}
	fmt.Printf("\n")
}

// Problems go to stderr; -report needs stdout to carry only JSON.
var (
	messageOut io.Writer = os.Stdout
	problemOut io.Writer = os.Stderr
)

// PrintColorizedMessage prints a message with specified color
func PrintColorizedMessage(color, message string) {
	printColorized(messageOut, color, message)
}

func printColorized(w io.Writer, color, message string) {
	fmt.Fprintf(w, "%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green
func PrintSuccess(message string) {
	printColorized(messageOut, banner.ColorGreen, fmt.Sprintf("✓ %s", message))
}

// PrintError prints an error message in red to stderr
func PrintError(message string) {
	printColorized(problemOut, banner.ColorRed, fmt.Sprintf("✗ %s", message))
}

// PrintWarning prints a warning message in yellow to stderr
func PrintWarning(message string) {
	printColorized(problemOut, banner.ColorYellow, fmt.Sprintf("⚠ %s", message))
}
