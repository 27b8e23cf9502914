package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"aktis-analytics-jira/internal/analytics"
	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/models"
	"aktis-analytics-jira/internal/services"

	"github.com/ternarybob/arbor"
)

const appName = "aktis-analytics-jira"

// reportViews are printed by -report when no -view is given
var reportViews = []string{"summary", "active_high_priority", "bottlenecks", "workload", "fix_version_progress", "reopened_rate"}

func main() {
	var (
		configPath     = flag.String("config", "", "Path to configuration file")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
		report         = flag.Bool("report", false, "Print analytics views as JSON and exit")
		view           = flag.String("view", "", "Comma separated views for -report (default: overview views)")
		query          = flag.String("query", "", "JQL to evaluate (default: derived from configured epics)")
		refresh        = flag.Bool("refresh", false, "Bypass the cache for -report")
		priority       = flag.String("priority", "", "Priority filter for -report, or 'all' (default: configured)")
		checkJira      = flag.Bool("check", false, "Verify Jira credentials and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s (build: %s)\n", appName, common.GetVersion(), common.GetBuild())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	environment := parseMode(*mode)

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Service.Environment = environment

	if *validateConfig {
		common.PrintSuccess("Configuration is valid")
		os.Exit(0)
	}

	// stdout carries the report
	if *report {
		cfg.Logging.Output = "file"
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	runMode := "Server"
	if *report {
		runMode = "Report"
	}

	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", environment).
		Str("mode", runMode).
		Msg("Starting Aktis Analytics Jira")

	if !*quiet && !*report {
		common.PrintBanner(cfg, runMode, common.GetLogFilePath())
	}

	if !cfg.HasCredentials() {
		logger.Warn().Msg("Jira credentials not configured, requests will be anonymous")
	}

	engine := services.NewEngineFromConfig(cfg, logger)

	code := 0
	switch {
	case *checkJira:
		code = runCheck(engine)
	case *report:
		code = runReport(engine, logger, *query, *refresh, *priority, *view)
	default:
		runServerMode(cfg, engine, logger)
	}

	if err := engine.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close snapshot store")
	}
	logger.Info().Msg("Aktis Analytics Jira shutdown complete")
	os.Exit(code)
}

func runCheck(engine *services.Engine) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := engine.TestConnection(ctx)
	if err != nil {
		common.PrintError(fmt.Sprintf("Jira connection failed: %v", err))
		return 1
	}
	common.PrintSuccess(fmt.Sprintf("Connected to Jira as %s", user.DisplayName))
	return 0
}

func runReport(engine *services.Engine, logger arbor.ILogger, query string, refresh bool, priority, viewList string) int {
	names := reportViews
	if viewList != "" {
		names = strings.Split(viewList, ",")
	}

	priorities := engine.DefaultPriorities()
	switch {
	case strings.EqualFold(priority, "all"):
		priorities = nil
	case priority != "":
		priorities = models.ParsePriorities(priority)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	set, result, err := engine.Evaluate(ctx, query, refresh, priorities)
	if err != nil {
		logger.Error().Err(err).Msg("Report failed")
		common.PrintError(err.Error())
		return 1
	}
	if result.Diagnostics.Stale {
		common.PrintWarning("Jira refresh failed, report uses the last successful fetch")
	}

	out := map[string]interface{}{
		"query":        result.Query,
		"evaluated_at": set.Now,
		"fetched_at":   result.FetchedAt,
		"diagnostics":  result.Diagnostics,
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		fn, ok := analytics.View(name)
		if !ok {
			common.PrintError(fmt.Sprintf("Unknown view %q (available: %s)", name, strings.Join(analytics.ViewNames(), ", ")))
			return 2
		}
		out[name] = fn(set)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
		return 1
	}
	return 0
}

func runServerMode(cfg *common.Config, engine *services.Engine, logger arbor.ILogger) {
	logger.Info().Msg("Starting in server mode")

	webServer, err := services.NewWebServer(cfg, engine, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create web server")
		return
	}

	if err := webServer.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to start web server")
		return
	}

	logger.Info().
		Int("port", cfg.Service.Port).
		Msg("Web server started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Server running - press Ctrl+C to stop")

	<-sigChan
	logger.Info().Msg("Shutdown signal received")

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}

	logger.Info().Msg("Server mode shutdown complete")
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s v%s - Jira issue analytics\n\n", appName, common.GetVersion())
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", os.Args[0])
	fmt.Println("Flags:")
	fmt.Println("  -mode string        Environment mode: 'dev', 'development', 'prod', or 'production' (default \"dev\")")
	fmt.Println("  -config string      Configuration file path")
	fmt.Println("  -quiet              Suppress banner output")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show help message")
	fmt.Println("  -validate           Validate configuration file and exit")
	fmt.Println("  -check              Verify Jira credentials and exit")
	fmt.Println("  -report             Print analytics views as JSON and exit")
	fmt.Println("  -view string        Comma separated views for -report")
	fmt.Println("  -query string       JQL to evaluate (default: derived from configured epics)")
	fmt.Println("  -refresh            Bypass the cache for -report")
	fmt.Println("  -priority string    Priority filter for -report, e.g. 'Blocker,Critical' or 'all'")
	fmt.Printf("\nViews: %s\n", strings.Join(analytics.ViewNames(), ", "))
	fmt.Println("\nExamples:")
	fmt.Printf("  %s                                  # Run the API server\n", os.Args[0])
	fmt.Printf("  %s -report -view summary,aging      # Print two views\n", os.Args[0])
	fmt.Printf("  %s -config /path/to/config.toml     # Use custom config file\n", os.Args[0])
}
