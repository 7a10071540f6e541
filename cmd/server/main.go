package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"

	"tkcollect/application"
	"tkcollect/database"
	"tkcollect/domain/contracts"
	"tkcollect/infrastructure/config"
	"tkcollect/infrastructure/repositories"
	"tkcollect/infrastructure/toonkor"
	"tkcollect/interfaces/web/handlers"
	"tkcollect/interfaces/ws"
	"tkcollect/logging"
	"tkcollect/platform/cache"
	"tkcollect/platform/events"
)

func main() {
	loadEnvironment()
	cfg := config.LoadAppConfigFromEnv()

	logger := initializeLogging(cfg)

	db := initializeDatabase(cfg, logger)
	defer db.Close()

	deps := buildDependencies(cfg, db, logger)

	router := setupRoutes(deps, cfg)
	startServer(router, cfg.HTTPAddr, logger)
}

// ApplicationServices holds the dispatchers and the GUI bridge.
type ApplicationServices struct {
	Tasks    *application.TaskDispatcher
	Removals *application.RemovalDispatcher
	Bridge   *application.QtBridge
}

// InterfaceLayer groups the client-facing handlers.
type InterfaceLayer struct {
	Series  *ws.SeriesHandler
	Qt      *ws.QtHandler
	Library *handlers.LibraryHandlers
}

// Dependencies holds all application dependencies organized by layer.
type Dependencies struct {
	DB     *database.Database
	Logger *logging.Logger

	ChapterRepo contracts.ChapterRepository
	StatusCache *cache.StatusCache
	Bus         *events.BroadcastBus

	Services   *ApplicationServices
	Interfaces *InterfaceLayer
}

func loadEnvironment() {
	if err := godotenv.Load(); err != nil {
		println("No .env file found, using environment variables")
	} else {
		println("Loaded configuration from .env file")
	}
}

func initializeLogging(cfg *config.AppConfig) *logging.Logger {
	logger := logging.NewLogger(cfg.Logging)
	logging.SetDefault(logger)

	logger.Info("Application starting",
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format,
		"db_path", cfg.Database.Path,
		"media_dir", cfg.MediaDir,
		"toonkor_base_url", cfg.ToonkorBaseURL,
	)

	return logger
}

func initializeDatabase(cfg *config.AppConfig, logger *logging.Logger) *database.Database {
	db, err := database.New(*cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	return db
}

// buildDependencies creates all application dependencies.
func buildDependencies(cfg *config.AppConfig, db *database.Database, logger *logging.Logger) *Dependencies {
	chapterRepo := repositories.NewSqlChapterRepository(db)
	statusCache := cache.NewStatusCache()
	bus := events.NewBroadcastBus()

	downloader := toonkor.NewClient(cfg.ToonkorBaseURL, cfg.MediaDir)
	cleaner := toonkor.NewCleaner(cfg.MediaDir)
	bridge := application.NewQtBridge(bus, cfg.TranslateTimeout)

	tasks := application.NewTaskDispatcher(
		chapterRepo, statusCache, bus, downloader, bridge, cfg.DownloadConcurrency)
	removals := application.NewRemovalDispatcher(chapterRepo, statusCache, bus, cleaner, tasks)

	services := &ApplicationServices{
		Tasks:    tasks,
		Removals: removals,
		Bridge:   bridge,
	}

	interfaces := &InterfaceLayer{
		Series:  ws.NewSeriesHandler(tasks, removals, bus),
		Qt:      ws.NewQtHandler(bridge, chapterRepo, statusCache, bus),
		Library: handlers.NewLibraryHandlers(chapterRepo, statusCache),
	}

	return &Dependencies{
		DB:          db,
		Logger:      logger,
		ChapterRepo: chapterRepo,
		StatusCache: statusCache,
		Bus:         bus,
		Services:    services,
		Interfaces:  interfaces,
	}
}

func setupRoutes(deps *Dependencies, cfg *config.AppConfig) *chi.Mux {
	r := chi.NewRouter()

	setupHTTPLogging(r, cfg)
	r.Use(middleware.Recoverer)

	setupSystemRoutes(r, deps)

	// Websocket channels
	r.Get("/ws/series/*", deps.Interfaces.Series.Serve)
	r.Get("/ws/qt", deps.Interfaces.Qt.Serve)

	// Library API
	r.Get("/api/library", deps.Interfaces.Library.ListLibrary)
	r.Get("/api/series/*", deps.Interfaces.Library.ListChapters)

	// Downloaded and translated pages for the web reader
	fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir)))
	r.Handle("/media/*", fileServer)

	return r
}

func setupHTTPLogging(r *chi.Mux, cfg *config.AppConfig) {
	httpLogger := httplog.NewLogger("tkcollect", httplog.Options{
		JSON:     true,
		LogLevel: logging.ParseLevel(cfg.Logging.Level),
		Concise:  true,
	})
	r.Use(httplog.RequestLogger(httpLogger))
}

func setupSystemRoutes(r *chi.Mux, deps *Dependencies) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.DB.Health()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		response := map[string]interface{}{
			"status":   "ok",
			"database": stats,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})
}

func startServer(router *chi.Mux, addr string, logger *logging.Logger) {
	server := &http.Server{Addr: addr, Handler: router}

	serverCtx, serverStopCtx := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sig
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				logger.Error("Graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			os.Exit(1)
		}
		serverStopCtx()
	}()

	logger.Info("Server starting", "address", addr)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}

	<-serverCtx.Done()
	logger.Info("Server stopped")
}
