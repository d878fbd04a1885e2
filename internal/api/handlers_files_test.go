// handlers_files_test.go - Tests for file handlers
package api

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/ifc-simplifier/backend/internal/models"
	"github.com/ifc-simplifier/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestFileHandler_HandleUploadFile(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		saveErr    error
		wantStatus int
		errCode    string
	}{
		{name: "valid upload", field: "file", wantStatus: http.StatusCreated},
		{name: "missing file field", field: "", errCode: "BAD_REQUEST"},
		{name: "wrong field name", field: "upload", errCode: "BAD_REQUEST"},
		{name: "storage failure", field: "file", saveErr: errors.New("disk full"), errCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.SaveErr = tt.saveErr
			handler := NewFileHandler(store)

			body, contentType := multipartBody(t, tt.field, "export.json", []byte(`[{"data":{"Name":"Class","Value":"IfcWall"}}]`))
			e := echo.New()
			c, rec := newContext(e, http.MethodPost, "/api/files/upload", body, nil)
			c.Request().Header.Set(echo.HeaderContentType, contentType)

			err := handler.HandleUploadFile(c)
			if tt.errCode != "" {
				apiErr := asAPIError(err)
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.errCode, apiErr.Code)
				assert.Equal(t, 0, store.GetFileCount())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, "export.json", info.Name)
			assert.Equal(t, int64(36), info.Size)
			assert.Equal(t, 1, store.GetFileCount())
		})
	}
}

func TestFileHandler_HandleGetRecentFiles(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("a", "model.json", []byte("[]"))
	store.AddFile("b", "vocabulary.yaml", []byte("name_key: Name"))
	store.AddFile("c", "app.config.xml", []byte("<x/>"))
	handler := NewFileHandler(store)

	e := echo.New()
	c, rec := newContext(e, http.MethodGet, "/api/files/recent", nil, nil)
	require.NoError(t, handler.HandleGetRecentFiles(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var files []models.FileInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "model.json", files[0].Name)
}

func TestFileHandler_HandleGetFile(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("known", "model.json", []byte("[]"))
	handler := NewFileHandler(store)
	e := echo.New()

	c, rec := newContext(e, http.MethodGet, "/api/files/known", nil, map[string]string{"id": "known"})
	require.NoError(t, handler.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"model.json"`)

	c, _ = newContext(e, http.MethodGet, "/api/files/missing", nil, map[string]string{"id": "missing"})
	apiErr := asAPIError(handler.HandleGetFile(c))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	c, _ = newContext(e, http.MethodGet, "/api/files/", nil, nil)
	apiErr = asAPIError(handler.HandleGetFile(c))
	require.NotNil(t, apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
}

func TestFileHandler_HandleRenameFile(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
		errCode    string
	}{
		{name: "rename", id: "f1", body: `{"name":"renamed.json"}`, wantStatus: http.StatusOK},
		{name: "blank name", id: "f1", body: `{"name":"  "}`, errCode: "VALIDATION_ERROR"},
		{name: "unknown file", id: "nope", body: `{"name":"x.json"}`, errCode: "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.AddFile("f1", "model.json", []byte("[]"))
			handler := NewFileHandler(store)

			e := echo.New()
			c, rec := newContext(e, http.MethodPut, "/api/files/"+tt.id, strings.NewReader(tt.body), map[string]string{"id": tt.id})
			c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

			err := handler.HandleRenameFile(c)
			if tt.errCode != "" {
				apiErr := asAPIError(err)
				require.NotNil(t, apiErr)
				assert.Equal(t, tt.errCode, apiErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			info, err := store.Get("f1")
			require.NoError(t, err)
			assert.Equal(t, "renamed.json", info.Name)
		})
	}
}

func TestFileHandler_HandleDeleteFile(t *testing.T) {
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("f1", "model.json", []byte("[]"))
	handler := NewFileHandler(store)
	e := echo.New()

	c, rec := newContext(e, http.MethodDelete, "/api/files/f1", nil, map[string]string{"id": "f1"})
	require.NoError(t, handler.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.GetFileCount())

	c, _ = newContext(e, http.MethodDelete, "/api/files/f1", nil, map[string]string{"id": "f1"})
	apiErr := asAPIError(handler.HandleDeleteFile(c))
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
