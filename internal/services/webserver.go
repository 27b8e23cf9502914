package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/handlers"
	"aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer exposes the engine over HTTP and pushes refresh events over
// WebSocket
type webServer struct {
	config      *common.Config
	engine      interfaces.AnalyticsEngine
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	wsHub       *handlers.WebSocketHub

	mu      sync.RWMutex
	running bool
}

// NewWebServer creates a new web server instance. The WebSocket hub is
// registered with the engine as a refresh notifier.
func NewWebServer(cfg *common.Config, engine interfaces.AnalyticsEngine, logger arbor.ILogger) (interfaces.WebService, error) {
	ws := newWebServer(cfg, engine, logger)
	return ws, nil
}

func newWebServer(cfg *common.Config, engine interfaces.AnalyticsEngine, logger arbor.ILogger) *webServer {
	wsHub := handlers.NewWebSocketHub(logger)
	engine.AddNotifier(wsHub)

	apiHandlers := handlers.NewAPIHandlers(cfg, engine, logger, wsHub)

	ws := &webServer{
		config:      cfg,
		engine:      engine,
		logger:      logger,
		apiHandlers: apiHandlers,
		wsHub:       wsHub,
	}

	ws.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Service.Port),
		Handler:           ws.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return ws
}

func (ws *webServer) routes() http.Handler {
	mux := http.NewServeMux()

	logMiddleware := middleware.Logging(ws.logger)
	corsMiddleware := middleware.CORS(ws.config.Service.CORSOrigins)
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return logMiddleware(corsMiddleware(h))
	}

	mux.HandleFunc("/health", wrap(ws.apiHandlers.HealthHandler))
	mux.HandleFunc("/version", wrap(ws.apiHandlers.VersionHandler))
	mux.HandleFunc("/status", wrap(ws.apiHandlers.StatusHandler))
	mux.HandleFunc("/config", wrap(ws.apiHandlers.ConfigHandler))
	mux.HandleFunc("/issues", wrap(ws.apiHandlers.IssuesHandler))
	mux.HandleFunc("/metrics/", wrap(ws.apiHandlers.MetricsHandler))
	mux.HandleFunc("/views", wrap(ws.apiHandlers.ViewsHandler))
	mux.HandleFunc("/views/", wrap(ws.apiHandlers.ViewsHandler))
	mux.HandleFunc("/invalidate", wrap(ws.apiHandlers.InvalidateHandler))

	// No logging wrapper: the upgrade needs the raw ResponseWriter
	mux.HandleFunc("/ws", corsMiddleware(ws.wsHub.WebSocketHandler))

	mux.HandleFunc("/", wrap(ws.apiHandlers.IndexHandler))

	return mux
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.mu.Lock()
	ws.running = true
	ws.mu.Unlock()

	go func() {
		ws.logger.Info().Int("port", ws.config.Service.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
			ws.mu.Lock()
			ws.running = false
			ws.mu.Unlock()
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.mu.Lock()
	ws.running = false
	ws.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	ws.wsHub.Close()
	return ws.server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.running
}
