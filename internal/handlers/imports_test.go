package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"erp-asset-api/internal/auth"
	"erp-asset-api/pkg/importer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func managerContext(ctx context.Context) context.Context {
	return auth.WithClaims(ctx, &auth.Claims{Roles: []string{auth.RoleAssetManager}})
}

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		fw, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestImportsHandler_UploadExcel(t *testing.T) {
	var gotOpts importer.ImportOptions
	var gotBody []byte
	handler := &ImportsHandler{
		Import: func(_ context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error) {
			gotOpts = opts
			gotBody, _ = io.ReadAll(r)
			return importer.ImportSummary{Inserted: 2, DryRun: opts.DryRun, Sheets: []importer.SheetSummary{}}, nil
		},
		MaxBytes:   20 << 20,
		DefaultMap: "configs/assets.yaml",
	}

	t.Run("Rejects callers without a manager role", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/imports/excel", nil)
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Roles: []string{"viewer"}}))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Rejects non-multipart content type", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/imports/excel", nil)
		req.Header.Set("Content-Type", "application/json")
		req = req.WithContext(managerContext(req.Context()))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "content-type must be multipart/form-data")
	})

	t.Run("Rejects invalid max_errors", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"max_errors": "-1"}, "assets.xlsx", []byte("x"))
		req := httptest.NewRequest("POST", "/imports/excel", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(managerContext(req.Context()))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "max_errors")
	})

	t.Run("Rejects missing file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "", nil)
		req := httptest.NewRequest("POST", "/imports/excel", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(managerContext(req.Context()))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("Rejects non-xlsx file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "assets.xls", []byte("fake excel content"))
		req := httptest.NewRequest("POST", "/imports/excel", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(managerContext(req.Context()))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "only .xlsx files are accepted")
	})

	t.Run("Rejects invalid inline mapping", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"mapping": "sheets: {}"}, "assets.xlsx", []byte("x"))
		req := httptest.NewRequest("POST", "/imports/excel", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(managerContext(req.Context()))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "no sheets")
	})

	t.Run("Runs the import", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"dry_run": "true", "max_errors": "5"}, "assets.xlsx", []byte("workbook"))
		req := httptest.NewRequest("POST", "/imports/excel", body)
		req.Header.Set("Content-Type", ct)
		req = req.WithContext(auth.WithClaims(req.Context(), &auth.Claims{Roles: []string{auth.RoleAdmin}}))

		w := httptest.NewRecorder()
		handler.UploadExcel(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, gotOpts.DryRun)
		assert.Equal(t, 5, gotOpts.MaxErrors)
		assert.Equal(t, "configs/assets.yaml", gotOpts.MappingPath)
		assert.Equal(t, []byte("workbook"), gotBody)

		var resp struct {
			Data importer.ImportSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Inserted)
		assert.True(t, resp.Data.DryRun)
	})
}

func TestImportsHandler_ImportFailure(t *testing.T) {
	handler := &ImportsHandler{
		Import: func(context.Context, io.Reader, importer.ImportOptions) (importer.ImportSummary, error) {
			return importer.ImportSummary{Errors: 51}, errors.New("too many errors (51), stopping import")
		},
		MaxBytes: 1 << 20,
	}

	body, ct := multipartBody(t, nil, "assets.xlsx", []byte("workbook"))
	req := httptest.NewRequest("POST", "/imports/excel", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(managerContext(req.Context()))

	w := httptest.NewRecorder()
	handler.UploadExcel(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "IMPORT_FAILED")
	assert.Contains(t, w.Body.String(), "too many errors")
}

func TestIsXLSX(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		expected bool
	}{
		{"Valid xlsx", "test.xlsx", true},
		{"Valid xlsx uppercase", "TEST.XLSX", true},
		{"Valid xlsx mixed case", "Test.XlSx", true},
		{"Invalid xls", "test.xls", false},
		{"Invalid xlsm", "test.xlsm", false},
		{"Invalid txt", "test.txt", false},
		{"No extension", "test", false},
		{"Empty filename", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &multipart.FileHeader{
				Filename: tt.filename,
			}
			assert.Equal(t, tt.expected, isXLSX(header))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "test", "count": 42})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "test", response["message"])
	assert.Equal(t, float64(42), response["count"])
}
