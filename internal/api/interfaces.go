// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/records"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FileHandler handles uploaded export files
type FileHandler interface {
	HandleUploadFile(c echo.Context) error
	HandleGetRecentFiles(c echo.Context) error
	HandleGetFile(c echo.Context) error
	HandleDeleteFile(c echo.Context) error
	HandleRenameFile(c echo.Context) error
}

// SimplifyHandler flattens a request body synchronously
type SimplifyHandler interface {
	HandleSimplify(c echo.Context) error
}

// SessionHandler handles asynchronous simplification sessions
type SessionHandler interface {
	HandleStartSession(c echo.Context) error
	HandleSessionStatus(c echo.Context) error
	HandleSessionProgressStream(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleSessionRecords(c echo.Context) error
	HandleSessionRecordsMsgpack(c echo.Context) error
	HandleSessionClasses(c echo.Context) error
	HandleSessionAsk(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
}

// VocabularyHandler reads and replaces the active attribute vocabulary
type VocabularyHandler interface {
	HandleGetVocabulary(c echo.Context) error
	HandleUpdateVocabulary(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	StartSession(fileID, filePath string) (*models.SimplifySession, error)
	GetSession(id string) (*models.SimplifySession, bool)
	TouchSession(id string) bool
	DeleteSession(id string) bool
	QueryRecords(ctx context.Context, id string, params records.QueryParams, page, pageSize int) ([]extract.Record, int, error)
	GetClasses(ctx context.Context, id string) ([]string, error)
	GetAllRecords(ctx context.Context, id string) ([]extract.Record, error)
	Extractor() *extract.Extractor
	SetExtractor(x *extract.Extractor)
}
