package internal

import (
	"fmt"
	"net/http"
	"strings"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// listAssets handles asset listing with filters and pagination
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f := params.filter()
	f.AssetType = strings.TrimSpace(r.URL.Query().Get("asset_type"))
	f.AssetClass = strings.TrimSpace(r.URL.Query().Get("asset_class"))
	if f.Statuses, err = parseStatuses(r.URL.Query().Get("status")); err != nil {
		writeError(w, r, err)
		return
	}

	s.writeAssetPage(w, r, f)
}

// listAssignedAssets lists assets currently held by an employee
func (s *Server) listAssignedAssets(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f := params.filter()
	f.Statuses = []models.Status{models.StatusAssigned}
	s.writeAssetPage(w, r, f)
}

func (s *Server) writeAssetPage(w http.ResponseWriter, r *http.Request, f models.AssetFilter) {
	items, total, err := s.Store.ListAssets(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewAssetList(items, total, f.Page, f.Size))
}

// getAsset handles getting a single asset by business id
func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.Store.AssetByBusinessID(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// createAsset handles creating a new asset
func (s *Server) createAsset(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ManagerRoles...) {
		return
	}

	var req models.CreateAssetRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", lifecycle.ErrInvalidArgument, err))
		return
	}

	a, err := s.Store.CreateAsset(r.Context(), req, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// updateAsset applies a partial update of descriptive fields
func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ManagerRoles...) {
		return
	}

	var req models.UpdateAssetRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.Store.UpdateAsset(r.Context(), chi.URLParam(r, "asset_id"), req.AssetAttributes, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// deleteAsset disposes of the asset. Rows are never removed so the
// history and event log stay intact.
func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ManagerRoles...) {
		return
	}

	reason := "Asset disposed"
	_, err := s.Manager.ChangeStatus(r.Context(), chi.URLParam(r, "asset_id"), lifecycle.StatusInput{
		Status: string(models.StatusDisposed),
		Reason: &reason,
		Actor:  auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
