package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"erp-asset-api/internal/auth"
	"erp-asset-api/pkg/importer"
)

// ImportFunc runs an import; the default writes through a pgx pool.
type ImportFunc func(ctx context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error)

// ImportsHandler handles Excel import operations
type ImportsHandler struct {
	Import     ImportFunc
	MaxBytes   int64
	DefaultMap string
}

// NewImportsHandler creates a new imports handler
func NewImportsHandler(db *pgxpool.Pool, defaultMap string) *ImportsHandler {
	return &ImportsHandler{
		Import: func(ctx context.Context, r io.Reader, opts importer.ImportOptions) (importer.ImportSummary, error) {
			return importer.ImportExcel(ctx, db, r, opts)
		},
		MaxBytes:   20 << 20, // 20 MB
		DefaultMap: defaultMap,
	}
}

// UploadExcel handles Excel file uploads for asset import
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRoles(r.Context(), auth.ManagerRoles...); err != nil {
		auth.WriteErrorResponse(w, "Insufficient permissions", "FORBIDDEN", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		auth.WriteErrorResponse(w, "content-type must be multipart/form-data", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		auth.WriteErrorResponse(w, "invalid multipart form: "+err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			auth.WriteErrorResponse(w, "max_errors must be a positive integer", "INVALID_ARGUMENT", http.StatusBadRequest)
			return
		}
		maxErrors = n
	}

	opts := importer.ImportOptions{
		MappingPath: h.DefaultMap,
		DryRun:      dryRun,
		MaxErrors:   maxErrors,
		Actor:       auth.ActorFromContext(r.Context()),
	}
	if raw := r.FormValue("mapping"); raw != "" {
		m, err := importer.ParseMapping([]byte(raw))
		if err != nil {
			auth.WriteErrorResponse(w, err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
			return
		}
		opts.Mapping = m
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		auth.WriteErrorResponse(w, "file is required: "+err.Error(), "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		auth.WriteErrorResponse(w, "only .xlsx files are accepted", "INVALID_ARGUMENT", http.StatusBadRequest)
		return
	}

	sum, impErr := h.Import(r.Context(), file, opts)
	if impErr != nil {
		log.Ctx(r.Context()).Warn().Err(impErr).Str("file", header.Filename).Msg("spreadsheet import failed")
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "IMPORT_FAILED",
			"details": impErr.Error(),
			"data":    sum,
		})
		return
	}

	log.Ctx(r.Context()).Info().
		Str("file", header.Filename).
		Bool("dry_run", dryRun).
		Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("errors", sum.Errors).
		Msg("spreadsheet import finished")

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

// isXLSX checks if the uploaded file is an Excel .xlsx file
func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
