package internal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/go-chi/chi/v5"
)

func (s *Server) listMaintenance(w http.ResponseWriter, r *http.Request) {
	a, err := s.Store.AssetByBusinessID(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	logs, err := s.Store.MaintenanceLogs(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []models.MaintenanceLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

// createMaintenance records work performed on an asset and appends a
// maintenance event. The asset status is left alone.
func (s *Server) createMaintenance(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ManagerRoles...) {
		return
	}

	var req models.CreateMaintenanceLogRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	req.MaintenanceType = strings.TrimSpace(req.MaintenanceType)
	if req.MaintenanceType == "" {
		writeError(w, r, fmt.Errorf("%w: maintenance_type is required", lifecycle.ErrInvalidArgument))
		return
	}
	if req.Cost != nil && *req.Cost < 0 {
		writeError(w, r, fmt.Errorf("%w: cost must not be negative", lifecycle.ErrInvalidArgument))
		return
	}

	a, err := s.Store.AssetByBusinessID(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	actor := auth.ActorFromContext(r.Context())
	m := &models.MaintenanceLog{
		AssetPK:         a.ID,
		AssetID:         a.AssetID,
		MaintenanceType: req.MaintenanceType,
		Description:     req.Description,
		Cost:            req.Cost,
		PerformedBy:     req.PerformedBy,
		PerformedAt:     time.Now().UTC(),
		NextMaintenance: req.NextMaintenance,
	}
	if req.PerformedAt != nil {
		m.PerformedAt = req.PerformedAt.UTC()
	}
	if m.PerformedBy == nil && actor != "" {
		m.PerformedBy = &actor
	}

	if err := s.Store.AddMaintenanceLog(r.Context(), a, m, actor); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parseSkipLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.Store.Categories(r.Context(), skip, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}
