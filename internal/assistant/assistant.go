// Package assistant is the boundary toward an external question-answering
// service. It formats flattened records as context and hands them to a
// Completer; the completion client itself lives outside this module.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/ifc-simplifier/backend/internal/extract"
)

var (
	// ErrNoCompleter is returned when no completion service is configured.
	ErrNoCompleter = errors.New("no completion service configured")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("question is required")
)

// Request is what a Completer receives.
type Request struct {
	Question string
	Context  string
}

// Completer answers a question against the supplied context.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// FormatContext renders records as indented JSON with UTF-8 left as is.
func FormatContext(records []extract.Record) (string, error) {
	if records == nil {
		records = []extract.Record{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("formatting context: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// RecordText renders one record as a "key: value, ..." line.
func RecordText(r extract.Record) string {
	return r.Text()
}

// Describe returns a short label for a record based on its class.
func Describe(r extract.Record) string {
	class := r["Class"]
	if class == "" {
		class = "Unknown"
	}
	return "IFC element of class " + class
}

// Service wires records to an optional Completer.
type Service struct {
	completer Completer
}

// NewService creates a Service. A nil completer is allowed; Ask then
// returns ErrNoCompleter.
func NewService(c Completer) *Service {
	return &Service{completer: c}
}

// Enabled reports whether a completer is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.completer != nil
}

// Ask sends question with the records as context.
func (s *Service) Ask(ctx context.Context, records []extract.Record, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if !s.Enabled() {
		return "", ErrNoCompleter
	}

	contextText, err := FormatContext(records)
	if err != nil {
		return "", err
	}

	answer, err := s.completer.Complete(ctx, Request{Question: question, Context: contextText})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return answer, nil
}
