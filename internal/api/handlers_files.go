// handlers_files.go - Uploaded export file handlers
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

const (
	recentFilesScan  = 50
	recentFilesLimit = 20
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store storage.Store
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store) FileHandler {
	return &FileHandlerImpl{store: store}
}

// HandleUploadFile accepts an element export as multipart field "file"
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	info, err := h.store.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save file", err)
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleGetRecentFiles returns recently uploaded JSON exports
func (h *FileHandlerImpl) HandleGetRecentFiles(c echo.Context) error {
	files, err := h.store.List(recentFilesScan)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}

	exports := filterExportFiles(files)

	limit := recentFilesLimit
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 && n < limit {
		limit = n
	}
	if len(exports) > limit {
		exports = exports[:limit]
	}

	return c.JSON(http.StatusOK, exports)
}

// HandleGetFile returns metadata for a specific file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes an uploaded file
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.store.Delete(id); err != nil {
		return NewNotFoundError("file", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the display name of a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return NewNotFoundError("file", id)
	}

	return c.JSON(http.StatusOK, info)
}

type renameFileRequest struct {
	Name string `json:"name"`
}

// filterExportFiles drops vocabulary and config files from a listing.
func filterExportFiles(files []*models.FileInfo) []*models.FileInfo {
	exports := make([]*models.FileInfo, 0, len(files))
	for _, f := range files {
		nameLower := strings.ToLower(f.Name)
		if strings.HasSuffix(nameLower, ".xml") ||
			strings.HasSuffix(nameLower, ".yaml") ||
			strings.HasSuffix(nameLower, ".yml") {
			continue
		}
		exports = append(exports, f)
	}
	return exports
}
