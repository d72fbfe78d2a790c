package server

import (
	"net/http"

	"github.com/alfredjeanlab/warren/internal/model"
)

// handleListChanges handles GET /v1/changes. Records are returned in journal
// order for the given environment, optionally narrowed to a single run.
func (s *WarrenServer) handleListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	environmentID := q.Get("environment_id")
	if environmentID == "" {
		writeError(w, http.StatusBadRequest, "environment_id is required")
		return
	}

	changes, err := s.store.ListChanges(r.Context(), environmentID, q.Get("run_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list changes")
		return
	}

	if changes == nil {
		changes = []*model.ChangeRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changes": changes,
		"total":   len(changes),
	})
}
