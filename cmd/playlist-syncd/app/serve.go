package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/chapterline/playlist-sync-server/internal/api"
	"github.com/chapterline/playlist-sync-server/internal/cache"
	"github.com/chapterline/playlist-sync-server/internal/cdn"
	"github.com/chapterline/playlist-sync-server/internal/config"
	"github.com/chapterline/playlist-sync-server/internal/db"
	"github.com/chapterline/playlist-sync-server/internal/feed"
	"github.com/chapterline/playlist-sync-server/internal/logger"
	"github.com/chapterline/playlist-sync-server/internal/notify"
	"github.com/chapterline/playlist-sync-server/internal/status"
	"github.com/chapterline/playlist-sync-server/internal/store"
	pkgsync "github.com/chapterline/playlist-sync-server/internal/sync"
	"github.com/chapterline/playlist-sync-server/internal/sync/coordinator"
	"github.com/chapterline/playlist-sync-server/internal/sync/state"
	"github.com/chapterline/playlist-sync-server/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playlist sync server",
	Long: `Start the playlist sync server.

The server requires a configuration file (--config) that specifies:
- The tracked playlists and the upstream feed endpoint
- Storage backend (file or database)
- Sync cadence, WebSub and CDN purge settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 10 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		logger.Fatalf("Failed to mark config flag as required: %v", err)
	}
}

// loadAdminToken reads the admin bearer token configured for the server.
// An unset path disables the admin routes.
func loadAdminToken(cfg *config.Config) string {
	if cfg.Server.AdminTokenFile == "" {
		return ""
	}

	data, err := os.ReadFile(cfg.Server.AdminTokenFile)
	if err != nil {
		logger.Warnf("Failed to read admin token file %s: %v", cfg.Server.AdminTokenFile, err)
		return ""
	}

	return strings.TrimSpace(string(data))
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	logger.Initialize(viper.GetBool("debug"))

	address := viper.GetString("address")
	logger.Infof("Starting playlist sync server on %s", address)

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Infof("Loaded configuration from %s (%d playlists, storage: %s)",
		configPath, len(cfg.Playlists), cfg.Storage.Type)

	// Storage backend: Postgres holds videos and sync state when configured,
	// otherwise state lives on disk and videos in memory.
	var (
		dbConn *db.Connection
		videos store.VideoStore
	)
	if cfg.Storage.Type == config.StorageTypeDatabase {
		dbConn, err = db.NewConnection(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer dbConn.Close()
		videos = store.NewPostgresStore(dbConn.Pool)
	} else {
		if err := os.MkdirAll(cfg.DataDir(), 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		logger.Warn("File storage keeps video items in memory; they are rebuilt on the next sync after restart")
		videos = store.NewMemoryStore()
	}

	persistence := status.NewFileStatePersistence(cfg.DataDir())
	var dbPool *pgxpool.Pool
	if dbConn != nil {
		dbPool = dbConn.Pool
	}
	states, err := state.NewStateService(cfg, persistence, dbPool)
	if err != nil {
		return fmt.Errorf("failed to create state service: %w", err)
	}

	if err := states.Initialize(ctx, cfg.Playlists); err != nil {
		return fmt.Errorf("failed to initialize playlist sync state: %w", err)
	}

	feedClient := feed.NewHTTPClient(cfg.Feed.BaseURL, cfg.FeedTimeout())

	var notifier pkgsync.Notifier
	if cfg.WebSub != nil {
		notifier = notify.NewWebSubNotifier(notify.Config{
			HubURL:        cfg.WebSub.HubURL,
			TopicTemplate: cfg.WebSub.TopicTemplate,
			MaxConcurrent: cfg.WebSub.MaxConcurrent,
		})
		logger.Infof("WebSub notifications enabled via hub %s", cfg.WebSub.HubURL)
	}

	var purger pkgsync.Purger
	if cfg.CDN != nil {
		purger = cdn.NewPurger(cdn.Config{
			Endpoint:  cfg.CDN.Endpoint,
			TokenFile: cfg.CDN.TokenFile,
		})
		logger.Infof("CDN purge enabled via %s", cfg.CDN.Endpoint)
	}

	engine := pkgsync.NewEngine(states, feedClient, videos, notifier, purger, pkgsync.Options{
		LeaseTTL:     cfg.LeaseTTL(),
		GraceWindow:  cfg.GraceWindow(),
		ActiveWindow: cfg.ActiveWindow(),
	})

	// Instruments bind to whatever meter provider is installed globally;
	// without one they are no-ops.
	syncMetrics, err := telemetry.NewSyncMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	playlistMetrics, err := telemetry.NewPlaylistMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create playlist metrics: %w", err)
	}

	syncCoordinator := coordinator.New(engine, states, cfg,
		coordinator.WithSyncMetrics(syncMetrics),
		coordinator.WithPlaylistMetrics(playlistMetrics),
	)

	syncCtx, syncCancel := context.WithCancel(context.Background())
	defer syncCancel()
	go func() {
		if err := syncCoordinator.Start(syncCtx); err != nil {
			logger.Errorf("Sync coordinator failed: %v", err)
		}
	}()

	router := api.NewServer(api.Deps{
		Config:     cfg,
		States:     states,
		Videos:     videos,
		Runner:     engine,
		Purger:     purger,
		Cache:      cache.New(cfg.CacheCapacity(), cfg.CacheTTL()),
		AdminToken: loadAdminToken(cfg),
	}, api.WithMiddlewares(api.DefaultMiddlewares(serverRequestTimeout)...))

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		logger.Infof("Server listening on %s", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if err := syncCoordinator.Stop(); err != nil {
		logger.Errorf("Failed to stop sync coordinator: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
