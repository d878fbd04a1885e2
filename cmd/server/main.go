package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ifc-simplifier/backend/internal/api"
	"github.com/ifc-simplifier/backend/internal/assistant"
	"github.com/ifc-simplifier/backend/internal/config"
	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/logger"
	"github.com/ifc-simplifier/backend/internal/records"
	"github.com/ifc-simplifier/backend/internal/session"
	"github.com/ifc-simplifier/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ifc-simplifier: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath, err := resolveConfigPath()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	log, err := logger.NewLogger(cfg.Advanced.Debug, cfg.Advanced.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	x, err := loadExtractor(cfg.Extraction.VocabularyFile, log)
	if err != nil {
		return err
	}

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	sessionMgr, err := session.NewManager(x, session.Options{
		TempDir:     cfg.GetTempDir(),
		Workers:     cfg.Processing.Workers,
		MaxSessions: cfg.Processing.MaxSessions,
		DuckDB: records.Options{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		},
		Logger: log,
		Files:  fileStore,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}
	defer sessionMgr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, cfg, sessionMgr, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, cfg, log)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Store:          fileStore,
		SessionMgr:     sessionMgr,
		Assistant:      assistant.NewService(nil),
		Workers:        cfg.Processing.Workers,
		VocabularyPath: cfg.Extraction.VocabularyFile,
		AllowDeletion:  cfg.Security.AllowFileDeletion,
		Version:        Version,
		Logger:         log,
	}))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info("starting server",
		logger.String("version", Version),
		logger.String("build_time", BuildTime),
		logger.String("config", configPath),
		logger.String("listen", "http://"+cfg.GetServerAddr()),
		logger.String("data_dir", cfg.GetDataDir()),
		logger.Int("workers", cfg.Processing.Workers))

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", logger.Error(err))
		return err
	}
	return nil
}

// resolveConfigPath returns IFC_CONFIG when set, otherwise the config file
// next to the executable.
func resolveConfigPath() (string, error) {
	if p := os.Getenv("IFC_CONFIG"); p != "" {
		return p, nil
	}
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(exePath), "IFCSimplifier.config"), nil
}

// loadExtractor builds the extractor from the configured vocabulary file.
// A missing file falls back to the built-in vocabulary.
func loadExtractor(path string, log logger.Logger) (*extract.Extractor, error) {
	if path == "" {
		log.Info("using built-in vocabulary")
		return extract.Default(), nil
	}

	v, err := extract.LoadVocabulary(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("vocabulary file not found, using built-in vocabulary", logger.String("path", path))
		return extract.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	x, err := extract.New(v)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary %s: %w", path, err)
	}
	log.Info("vocabulary loaded", logger.String("path", path), logger.Int("desired", len(v.Desired)))
	return x, nil
}

func runCleanup(ctx context.Context, cfg *config.AppConfig, mgr *session.Manager, log logger.Logger) {
	interval := time.Duration(cfg.Processing.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	maxAge := time.Duration(cfg.Processing.SessionTimeoutMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = session.SessionMaxAge
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := mgr.CleanupOldSessions(maxAge); n > 0 {
				log.Info("session cleanup", logger.Int("removed", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
