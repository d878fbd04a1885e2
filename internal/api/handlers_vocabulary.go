// handlers_vocabulary.go - Attribute vocabulary handlers
package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ifc-simplifier/backend/internal/extract"
	"github.com/ifc-simplifier/backend/internal/logger"
	"github.com/labstack/echo/v4"
)

const mimeApplicationYAML = "application/yaml"

// VocabularyHandlerImpl implements the VocabularyHandler interface
type VocabularyHandlerImpl struct {
	sessionMgr SessionManager
	path       string // where PUT persists the vocabulary; empty keeps it in memory
	log        logger.Logger
}

// NewVocabularyHandler creates a vocabulary handler
func NewVocabularyHandler(sessionMgr SessionManager, path string, log logger.Logger) VocabularyHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &VocabularyHandlerImpl{
		sessionMgr: sessionMgr,
		path:       path,
		log:        log,
	}
}

// HandleGetVocabulary returns the active vocabulary as JSON, or YAML with ?format=yaml
func (h *VocabularyHandlerImpl) HandleGetVocabulary(c echo.Context) error {
	v := h.sessionMgr.Extractor().Vocabulary()

	if strings.EqualFold(c.QueryParam("format"), "yaml") {
		var buf bytes.Buffer
		if err := v.Encode(&buf); err != nil {
			return NewInternalError("failed to encode vocabulary", err)
		}
		return c.Blob(http.StatusOK, mimeApplicationYAML, buf.Bytes())
	}

	return c.JSON(http.StatusOK, v)
}

// HandleUpdateVocabulary replaces the active vocabulary. The body may be
// YAML or JSON. Sessions already running keep the previous vocabulary.
func (h *VocabularyHandlerImpl) HandleUpdateVocabulary(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return NewValidationError("vocabulary")
	}

	v, err := extract.ParseVocabulary(bytes.NewReader(body))
	if err != nil {
		return NewBadRequestError("invalid vocabulary", err)
	}

	x, err := extract.New(v)
	if err != nil {
		return NewBadRequestError("invalid vocabulary", err)
	}

	if h.path != "" {
		if err := saveVocabulary(h.path, v); err != nil {
			return NewInternalError("failed to persist vocabulary", err)
		}
	}

	h.sessionMgr.SetExtractor(x)
	h.log.Info("vocabulary updated",
		logger.Int("desired", len(v.Desired)),
		logger.Int("dimensions", len(v.Dimensions)),
		logger.String("path", h.path))

	return c.JSON(http.StatusOK, x.Vocabulary())
}

// saveVocabulary writes v to path through a temp file and rename.
func saveVocabulary(path string, v extract.Vocabulary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := v.Encode(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding vocabulary: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
