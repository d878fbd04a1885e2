// handlers_simplify.go - Synchronous simplification handler
package api

import (
	"errors"
	"net/http"

	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// SimplifyHandlerImpl implements the SimplifyHandler interface
type SimplifyHandlerImpl struct {
	sessionMgr SessionManager
	workers    int
}

// NewSimplifyHandler creates a simplify handler. The active extractor is
// taken from sessionMgr on every request.
func NewSimplifyHandler(sessionMgr SessionManager, workers int) SimplifyHandler {
	return &SimplifyHandlerImpl{
		sessionMgr: sessionMgr,
		workers:    workers,
	}
}

// HandleSimplify flattens the JSON tree in the request body
func (h *SimplifyHandlerImpl) HandleSimplify(c echo.Context) error {
	root, err := extract.DecodeReader(c.Request().Body)
	if err != nil {
		if errors.Is(err, extract.ErrInvalidInput) {
			return NewInvalidInputError(err)
		}
		return NewBadRequestError("failed to read request body", err)
	}

	result, err := h.sessionMgr.Extractor().Process(c.Request().Context(), root, h.workers)
	if err != nil {
		return NewServiceUnavailableError("request cancelled")
	}

	return respond(c, http.StatusOK, models.SimplifyResponse{
		Status:         "success",
		SimplifiedData: result.Value(),
	})
}
