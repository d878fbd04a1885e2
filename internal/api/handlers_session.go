// handlers_session.go - Simplification session handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/ifc-simplifier/backend/internal/assistant"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/records"
	"github.com/ifc-simplifier/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	store      storage.Store
	sessionMgr SessionManager
	assistant  *assistant.Service

	progressInterval time.Duration
	progressTimeout  time.Duration
}

// NewSessionHandler creates a new session handler instance
func NewSessionHandler(store storage.Store, sessionMgr SessionManager, svc *assistant.Service) SessionHandler {
	return &SessionHandlerImpl{
		store:            store,
		sessionMgr:       sessionMgr,
		assistant:        svc,
		progressInterval: 100 * time.Millisecond,
		progressTimeout:  5 * time.Minute,
	}
}

// HandleStartSession starts simplifying an uploaded file
func (h *SessionHandlerImpl) HandleStartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	req.FileID = strings.TrimSpace(req.FileID)
	if req.FileID == "" {
		return NewValidationError("fileId")
	}

	path, err := h.store.GetFilePath(req.FileID)
	if err != nil {
		return NewNotFoundError("file", req.FileID)
	}

	sess, err := h.sessionMgr.StartSession(req.FileID, path)
	if err != nil {
		return NewInternalError("failed to start session", err)
	}

	return c.JSON(http.StatusAccepted, sess)
}

// HandleSessionStatus returns the current status of a session
func (h *SessionHandlerImpl) HandleSessionStatus(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}

	// Touch session to prevent cleanup while being viewed
	h.sessionMgr.TouchSession(id)

	return c.JSON(http.StatusOK, sess)
}

// HandleSessionProgressStream streams session progress via SSE
func (h *SessionHandlerImpl) HandleSessionProgressStream(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		sendSSEError(c, "session not found")
		return nil
	}
	sendSSEData(c, sess)
	if sess.Done() {
		return nil
	}

	ticker := time.NewTicker(h.progressInterval)
	defer ticker.Stop()

	timeout := time.NewTimer(h.progressTimeout)
	defer timeout.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ticker.C:
			sess, ok := h.sessionMgr.GetSession(id)
			if !ok {
				sendSSEError(c, "session not found")
				return nil
			}
			sendSSEData(c, sess)
			if sess.Done() {
				return nil
			}

		case <-timeout.C:
			sendSSEError(c, "stream timeout")
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

// HandleSessionKeepAlive extends session lifetime for active viewing
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if ok := h.sessionMgr.TouchSession(id); !ok {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

// HandleSessionRecords returns a page of flattened records
func (h *SessionHandlerImpl) HandleSessionRecords(c echo.Context) error {
	page, apiErr := h.queryPage(c)
	if apiErr != nil {
		return apiErr
	}
	return respond(c, http.StatusOK, page)
}

// HandleSessionRecordsMsgpack returns a page of records as MessagePack
func (h *SessionHandlerImpl) HandleSessionRecordsMsgpack(c echo.Context) error {
	page, apiErr := h.queryPage(c)
	if apiErr != nil {
		return apiErr
	}
	return respondMsgpack(c, http.StatusOK, page)
}

func (h *SessionHandlerImpl) queryPage(c echo.Context) (*models.RecordPage, *APIError) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	params := records.QueryParams{
		Class:  c.QueryParam("class"),
		Search: c.QueryParam("search"),
	}

	recs, total, err := h.sessionMgr.QueryRecords(c.Request().Context(), id, params, page, pageSize)
	if err != nil {
		return nil, sessionError(id, err)
	}
	h.sessionMgr.TouchSession(id)

	return &models.RecordPage{
		Records:  recs,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// HandleSessionClasses returns the distinct element classes of a session
func (h *SessionHandlerImpl) HandleSessionClasses(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	classes, err := h.sessionMgr.GetClasses(c.Request().Context(), id)
	if err != nil {
		return sessionError(id, err)
	}

	return c.JSON(http.StatusOK, classes)
}

// HandleSessionAsk answers a question using the session's records as context
func (h *SessionHandlerImpl) HandleSessionAsk(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return NewValidationError("question")
	}
	if !h.assistant.Enabled() {
		return NewServiceUnavailableError("no completion service configured")
	}

	recs, err := h.sessionMgr.GetAllRecords(c.Request().Context(), id)
	if err != nil {
		return sessionError(id, err)
	}
	h.sessionMgr.TouchSession(id)

	answer, err := h.assistant.Ask(c.Request().Context(), recs, req.Question)
	switch {
	case errors.Is(err, assistant.ErrNoCompleter):
		return NewServiceUnavailableError("no completion service configured")
	case err != nil:
		return NewInternalError("failed to answer question", err)
	}

	return c.JSON(http.StatusOK, askResponse{Answer: answer})
}

// HandleDeleteSession drops a session and its record store
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}

	if !h.sessionMgr.DeleteSession(id) {
		return NewNotFoundError("session", id)
	}

	return c.NoContent(http.StatusNoContent)
}

type startSessionRequest struct {
	FileID string `json:"fileId"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

func sendSSEData(c echo.Context, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "data: %s\n\n", jsonData)
	c.Response().Flush()
}

func sendSSEError(c echo.Context, message string) {
	sendSSEData(c, map[string]string{"error": message})
}
