package models

// SessionStatus represents the status of a simplification session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusProcessing SessionStatus = "processing"
	SessionStatusComplete   SessionStatus = "complete"
	SessionStatusError      SessionStatus = "error"
)

// SimplifySession represents one run of the extractor over an uploaded export.
type SimplifySession struct {
	ID               string        `json:"id" msgpack:"id"`
	FileID           string        `json:"fileId" msgpack:"fileId"`
	Status           SessionStatus `json:"status" msgpack:"status"`
	Progress         float64       `json:"progress" msgpack:"progress"` // 0-100
	ElementCount     int           `json:"elementCount,omitempty" msgpack:"elementCount,omitempty"`
	ClassCount       int           `json:"classCount,omitempty" msgpack:"classCount,omitempty"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty" msgpack:"processingTimeMs,omitempty"`
	Single           bool          `json:"single,omitempty" msgpack:"single,omitempty"` // input was one element tree, not a list
	Error            string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewSimplifySession creates a new session in pending status.
func NewSimplifySession(id, fileID string) *SimplifySession {
	return &SimplifySession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Progress: 0,
	}
}

// Done reports whether the session reached a terminal state.
func (s *SimplifySession) Done() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}
