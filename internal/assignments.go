package internal

import (
	"net/http"

	"erp-asset-api/internal/auth"
	"erp-asset-api/internal/lifecycle"
	"erp-asset-api/internal/models"

	"github.com/go-chi/chi/v5"
)

// assignAsset hands an asset to an employee
func (s *Server) assignAsset(w http.ResponseWriter, r *http.Request) {
	var req models.AssignRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.Manager.Assign(r.Context(), chi.URLParam(r, "asset_id"), lifecycle.AssignInput{
		EmployeeID:   req.EmployeeID,
		AssignedDate: req.AssignedDate,
		Notes:        req.Notes,
		Actor:        auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// returnAsset closes the current assignment. The body is optional.
func (s *Server) returnAsset(w http.ResponseWriter, r *http.Request) {
	var req models.ReturnRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.Manager.Return(r.Context(), chi.URLParam(r, "asset_id"), lifecycle.ReturnInput{
		ReturnDate: req.ReturnDate,
		Notes:      req.Notes,
		Actor:      auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) changeStatus(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, auth.ManagerRoles...) {
		return
	}

	var req models.StatusChangeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	a, err := s.Manager.ChangeStatus(r.Context(), chi.URLParam(r, "asset_id"), lifecycle.StatusInput{
		Status: req.Status,
		Reason: req.Reason,
		Actor:  auth.ActorFromContext(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) currentAssignment(w http.ResponseWriter, r *http.Request) {
	cur, err := s.Manager.CurrentAssignment(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// assetEvents returns the asset's audit log, newest first
func (s *Server) assetEvents(w http.ResponseWriter, r *http.Request) {
	a, err := s.Store.AssetByBusinessID(r.Context(), chi.URLParam(r, "asset_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := s.Store.Events(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.AssetEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// assignmentHistory returns every assignment period, newest first
func (s *Server) assignmentHistory(w http.ResponseWriter, r *http.Request) {
	history := []models.AssignmentHistory{}
	for h, err := range s.Manager.History(r.Context(), chi.URLParam(r, "asset_id")) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		history = append(history, h)
	}
	writeJSON(w, http.StatusOK, history)
}
