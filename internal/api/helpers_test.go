package api

import (
	"context"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/records"
	"github.com/ifc-simplifier/backend/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

// MockSessionManager is a mock implementation for testing
type MockSessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*models.SimplifySession
	records   map[string][]extract.Record
	extractor *extract.Extractor
	touched   []string
	started   []string // file paths passed to StartSession
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions:  make(map[string]*models.SimplifySession),
		records:   make(map[string][]extract.Record),
		extractor: extract.Default(),
	}
}

// addComplete registers a finished session holding recs.
func (m *MockSessionManager) addComplete(id string, recs ...extract.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.NewSimplifySession(id, "file-"+id)
	s.Status = models.SessionStatusComplete
	s.Progress = 100
	s.ElementCount = len(recs)
	m.sessions[id] = s
	m.records[id] = recs
}

func (m *MockSessionManager) StartSession(fileID, filePath string) (*models.SimplifySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := models.NewSimplifySession("test-session-123", fileID)
	m.sessions[s.ID] = s
	m.started = append(m.started, filePath)
	copied := *s
	return &copied, nil
}

func (m *MockSessionManager) GetSession(id string) (*models.SimplifySession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

func (m *MockSessionManager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	if ok {
		m.touched = append(m.touched, id)
	}
	return ok
}

func (m *MockSessionManager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	delete(m.records, id)
	return ok
}

func (m *MockSessionManager) lookup(id string) ([]extract.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	if s.Status != models.SessionStatusComplete {
		return nil, session.ErrNotReady
	}
	return m.records[id], nil
}

func (m *MockSessionManager) QueryRecords(ctx context.Context, id string, params records.QueryParams, page, pageSize int) ([]extract.Record, int, error) {
	recs, err := m.lookup(id)
	if err != nil {
		return nil, 0, err
	}
	var matched []extract.Record
	for _, r := range recs {
		if params.Class == "" || r["Class"] == params.Class {
			matched = append(matched, r)
		}
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []extract.Record{}, len(matched), nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

func (m *MockSessionManager) GetClasses(ctx context.Context, id string) ([]string, error) {
	recs, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	classes := []string{}
	for _, r := range recs {
		if c := r["Class"]; c != "" && !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}
	return classes, nil
}

func (m *MockSessionManager) GetAllRecords(ctx context.Context, id string) ([]extract.Record, error) {
	return m.lookup(id)
}

func (m *MockSessionManager) Extractor() *extract.Extractor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extractor
}

func (m *MockSessionManager) SetExtractor(x *extract.Extractor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractor = x
}

// newContext builds an echo context for a request with optional path params.
func newContext(e *echo.Echo, method, target string, body io.Reader, params map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	return c, rec
}

// asAPIError extracts the APIError a handler returned.
func asAPIError(err error) *APIError {
	apiErr, _ := err.(*APIError)
	return apiErr
}

func mustExtractor(t *testing.T, v extract.Vocabulary) *extract.Extractor {
	t.Helper()
	x, err := extract.New(v)
	require.NoError(t, err)
	return x
}
