// routes.go - Route registration helpers
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ifc-simplifier/backend/internal/assistant"
	"github.com/ifc-simplifier/backend/internal/config"
	"github.com/ifc-simplifier/backend/internal/logger"
	"github.com/ifc-simplifier/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store          storage.Store
	SessionMgr     SessionManager
	Assistant      *assistant.Service
	Workers        int
	VocabularyPath string
	AllowDeletion  bool
	Version        string
	Logger         logger.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health     HealthHandler
	Files      FileHandler
	Simplify   SimplifyHandler
	Session    SessionHandler
	Vocabulary VocabularyHandler

	allowDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	svc := deps.Assistant
	if svc == nil {
		svc = assistant.NewService(nil)
	}
	return &Handlers{
		Health:        NewHealthHandler(deps.Version),
		Files:         NewFileHandler(deps.Store),
		Simplify:      NewSimplifyHandler(deps.SessionMgr, deps.Workers),
		Session:       NewSessionHandler(deps.Store, deps.SessionMgr, svc),
		Vocabulary:    NewVocabularyHandler(deps.SessionMgr, deps.VocabularyPath, deps.Logger),
		allowDeletion: deps.AllowDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.POST("/simplify", handlers.Simplify.HandleSimplify)

	// File management
	filesGroup := apiGroup.Group("/files")
	filesGroup.POST("/upload", handlers.Files.HandleUploadFile)
	filesGroup.GET("/recent", handlers.Files.HandleGetRecentFiles)
	filesGroup.GET("/:id", handlers.Files.HandleGetFile)
	filesGroup.PUT("/:id", handlers.Files.HandleRenameFile)
	if handlers.allowDeletion {
		filesGroup.DELETE("/:id", handlers.Files.HandleDeleteFile)
	}

	// Simplification sessions
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleStartSession)
	sessionGroup.GET("/:sessionId/status", handlers.Session.HandleSessionStatus)
	sessionGroup.GET("/:sessionId/progress", handlers.Session.HandleSessionProgressStream)
	sessionGroup.POST("/:sessionId/keepalive", handlers.Session.HandleSessionKeepAlive)
	sessionGroup.GET("/:sessionId/records", handlers.Session.HandleSessionRecords)
	sessionGroup.GET("/:sessionId/records/msgpack", handlers.Session.HandleSessionRecordsMsgpack)
	sessionGroup.GET("/:sessionId/classes", handlers.Session.HandleSessionClasses)
	sessionGroup.POST("/:sessionId/ask", handlers.Session.HandleSessionAsk)
	sessionGroup.DELETE("/:sessionId", handlers.Session.HandleDeleteSession)

	// Vocabulary
	apiGroup.GET("/config/vocabulary", handlers.Vocabulary.HandleGetVocabulary)
	apiGroup.PUT("/config/vocabulary", handlers.Vocabulary.HandleUpdateVocabulary)
}

// SetupMiddleware configures the error handler, serializer and common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, log logger.Logger) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	e.HTTPErrorHandler = NewErrorHandler(cfg.Advanced.Debug, log)
	e.JSONSerializer = JSONSerializer{}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasSuffix(path, "/status") ||
				strings.HasSuffix(path, "/progress") ||
				path == "/api/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, logger.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.Server.ReadTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return strings.HasSuffix(path, "/progress") ||
					strings.Contains(path, "/upload") ||
					strings.HasSuffix(path, "/simplify") ||
					strings.HasSuffix(path, "/ask") ||
					c.Request().Header.Get(echo.HeaderAccept) == "text/event-stream"
			},
			ErrorMessage: "Request timeout - query took too long",
		}))
	}

	if cfg.Processing.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Processing.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Request().URL.Path, "/progress")
			},
		}))
	}

	if cfg.Server.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	}

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: splitOrigins(cfg.Server.AllowOrigins),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
