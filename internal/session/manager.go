package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/logger"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/records"
)

// DefaultMaxSessions limits concurrent sessions to prevent disk and memory exhaustion
const DefaultMaxSessions = 10

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when records are requested before processing finished.
	ErrNotReady = errors.New("session is not complete")
)

// FileStatusSetter records the simplification state of an uploaded file.
// storage.Store satisfies it.
type FileStatusSetter interface {
	SetStatus(id string, status string) error
}

// File statuses reported through FileStatusSetter.
const (
	FileStatusSimplifying = "simplifying"
	FileStatusSimplified  = "simplified"
	FileStatusError       = "error"
)

// Options configures a Manager.
type Options struct {
	TempDir     string
	Workers     int
	MaxSessions int
	DuckDB      records.Options
	Logger      logger.Logger
	Files       FileStatusSetter // optional
}

// Manager runs simplification sessions and keeps their record stores.
type Manager struct {
	sessions map[string]*SessionState
	mu       sync.RWMutex

	xmu       sync.RWMutex
	extractor *extract.Extractor

	opts Options
	log  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SessionState holds the session metadata and its DuckDB-backed record store.
type SessionState struct {
	Session      *models.SimplifySession
	Store        *records.DuckStore
	LastAccessed time.Time
}

// NewManager creates a session manager that flattens with x.
func NewManager(x *extract.Extractor, opts Options) (*Manager, error) {
	if x == nil {
		x = extract.Default()
	}
	if opts.TempDir == "" {
		opts.TempDir = "./data/temp"
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if err := os.MkdirAll(opts.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions:  make(map[string]*SessionState),
		extractor: x,
		opts:      opts,
		log:       opts.Logger.With(logger.String("component", "session")),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Extractor returns the extractor used for new sessions.
func (m *Manager) Extractor() *extract.Extractor {
	m.xmu.RLock()
	defer m.xmu.RUnlock()
	return m.extractor
}

// SetExtractor swaps the extractor for sessions started afterwards.
// Running sessions keep the one they started with.
func (m *Manager) SetExtractor(x *extract.Extractor) {
	if x == nil {
		return
	}
	m.xmu.Lock()
	m.extractor = x
	m.xmu.Unlock()
}

// StartSession begins simplifying the export at filePath in the background.
func (m *Manager) StartSession(fileID, filePath string) (*models.SimplifySession, error) {
	if err := m.ctx.Err(); err != nil {
		return nil, fmt.Errorf("manager closed: %w", err)
	}

	m.evictIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewSimplifySession(sessionID, fileID)

	m.mu.Lock()
	m.sessions[sessionID] = &SessionState{
		Session:      session,
		LastAccessed: time.Now(),
	}
	snapshot := *session
	m.mu.Unlock()

	x := m.Extractor()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSimplify(sessionID, fileID, filePath, x)
	}()

	return &snapshot, nil
}

func (m *Manager) runSimplify(sessionID, fileID, filePath string, x *extract.Extractor) {
	log := m.log.With(logger.String("session", shortID(sessionID)), logger.String("file", fileID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("simplify panicked", logger.String("panic", fmt.Sprint(r)))
			m.fail(sessionID, fileID, fmt.Sprintf("simplify panicked: %v", r))
		}
	}()

	start := time.Now()
	m.setFileStatus(fileID, FileStatusSimplifying)
	m.update(sessionID, func(s *models.SimplifySession) {
		s.Status = models.SessionStatusProcessing
		s.Progress = 5
	})
	log.Info("starting simplify", logger.String("path", filePath))

	f, err := os.Open(filePath)
	if err != nil {
		log.Error("open failed", logger.Error(err))
		m.fail(sessionID, fileID, fmt.Sprintf("failed to open file: %v", err))
		return
	}
	root, err := extract.DecodeReader(f)
	f.Close()
	if err != nil {
		log.Warn("decode failed", logger.Error(err))
		m.fail(sessionID, fileID, err.Error())
		return
	}
	m.update(sessionID, func(s *models.SimplifySession) { s.Progress = 30 })

	result, err := x.Process(m.ctx, root, m.opts.Workers)
	if err != nil {
		log.Warn("processing cancelled", logger.Error(err))
		m.fail(sessionID, fileID, fmt.Sprintf("processing failed: %v", err))
		return
	}
	recs := result.Records()
	m.update(sessionID, func(s *models.SimplifySession) { s.Progress = 60 })

	store, err := records.NewDuckStore(m.opts.TempDir, sessionID, m.opts.DuckDB)
	if err != nil {
		log.Error("store creation failed", logger.Error(err))
		m.fail(sessionID, fileID, fmt.Sprintf("failed to create storage: %v", err))
		return
	}
	if err := store.Append(m.ctx, recs...); err != nil {
		store.Close()
		m.fail(sessionID, fileID, fmt.Sprintf("failed to store records: %v", err))
		return
	}
	if err := store.Finalize(m.ctx); err != nil {
		store.Close()
		m.fail(sessionID, fileID, fmt.Sprintf("failed to finalize storage: %v", err))
		return
	}
	classes, err := store.Classes(m.ctx)
	if err != nil {
		store.Close()
		m.fail(sessionID, fileID, fmt.Sprintf("failed to read classes: %v", err))
		return
	}

	elapsed := time.Since(start)
	m.setFileStatus(fileID, FileStatusSimplified)

	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		store.Close()
		return
	}
	state.Store = store
	state.Session.Status = models.SessionStatusComplete
	state.Session.Progress = 100
	state.Session.ElementCount = store.Len()
	state.Session.ClassCount = len(classes)
	state.Session.Single = !result.List
	state.Session.ProcessingTimeMs = elapsed.Milliseconds()
	m.mu.Unlock()

	log.Info("simplify complete",
		logger.Int("elements", len(recs)),
		logger.Int("classes", len(classes)),
		logger.Duration("elapsed", elapsed))
}

func (m *Manager) update(sessionID string, fn func(*models.SimplifySession)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		fn(state.Session)
	}
}

func (m *Manager) fail(sessionID, fileID, reason string) {
	m.update(sessionID, func(s *models.SimplifySession) {
		s.Status = models.SessionStatusError
		s.Error = reason
	})
	m.setFileStatus(fileID, FileStatusError)
}

func (m *Manager) setFileStatus(fileID, status string) {
	if m.opts.Files == nil || fileID == "" {
		return
	}
	if err := m.opts.Files.SetStatus(fileID, status); err != nil {
		m.log.Debug("file status not updated", logger.String("file", fileID), logger.Error(err))
	}
}

// evictIfNeeded drops the least recently used finished sessions until a new
// one fits under MaxSessions. Sessions still processing are never evicted.
func (m *Manager) evictIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.opts.MaxSessions {
		return
	}

	var idle []string
	for id, state := range m.sessions {
		if state.Session.Done() {
			idle = append(idle, id)
		}
	}
	sort.Slice(idle, func(i, j int) bool {
		return m.sessions[idle[i]].LastAccessed.Before(m.sessions[idle[j]].LastAccessed)
	})

	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	for _, id := range idle {
		if toFree <= 0 {
			break
		}
		m.dropLocked(id)
		toFree--
		m.log.Info("evicted idle session", logger.String("session", shortID(id)))
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if !state.Session.Done() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) || state.LastAccessed.After(cutoff) {
			continue
		}
		m.dropLocked(id)
		removed++
		m.log.Info("cleaned up aged session",
			logger.String("session", shortID(id)),
			logger.Duration("idle", now.Sub(state.LastAccessed).Round(time.Second)))
	}
	return removed
}

// GetSession returns a snapshot of a session.
func (m *Manager) GetSession(id string) (*models.SimplifySession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// QueryRecords returns a filtered page of records for a completed session.
func (m *Manager) QueryRecords(ctx context.Context, id string, params records.QueryParams, page, pageSize int) ([]extract.Record, int, error) {
	var (
		recs  []extract.Record
		total int
	)
	err := m.withStore(id, func(store *records.DuckStore) (err error) {
		recs, total, err = store.Query(ctx, params, page, pageSize)
		return err
	})
	return recs, total, err
}

// GetClasses returns the distinct element classes of a completed session.
func (m *Manager) GetClasses(ctx context.Context, id string) ([]string, error) {
	var classes []string
	err := m.withStore(id, func(store *records.DuckStore) (err error) {
		classes, err = store.Classes(ctx)
		return err
	})
	return classes, err
}

// GetAllRecords returns every record of a completed session in input order.
func (m *Manager) GetAllRecords(ctx context.Context, id string) ([]extract.Record, error) {
	var recs []extract.Record
	err := m.withStore(id, func(store *records.DuckStore) (err error) {
		recs, err = store.All(ctx)
		return err
	})
	return recs, err
}

// withStore runs fn under the read lock so the store cannot be closed
// while a query is in flight.
func (m *Manager) withStore(id string, fn func(*records.DuckStore) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if state.Store == nil {
		return ErrNotReady
	}
	return fn(state.Store)
}

// DeleteSession drops a session and its record store.
func (m *Manager) DeleteSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.dropLocked(id)
	return true
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels running sessions, waits for them and removes every store.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.sessions {
		m.dropLocked(id)
	}
}

func (m *Manager) dropLocked(id string) {
	state, ok := m.sessions[id]
	if !ok {
		return
	}
	if state.Store != nil {
		if err := state.Store.Close(); err != nil {
			m.log.Warn("closing record store", logger.String("session", shortID(id)), logger.Error(err))
		}
	}
	delete(m.sessions, id)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
