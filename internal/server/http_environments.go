package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/warren/internal/events"
	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

// handleCreateEnvironment handles POST /v1/environments.
func (s *WarrenServer) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := s.provisioner.Provision(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to provision environment")
		return
	}

	if err := s.pool.Acquire(env.Schema); err != nil {
		// The schema exists and the row is written; the lease is advisory.
		s.logger.Warn("failed to acquire pool lease", "environment", env.ID, "schema", env.Schema, "error", err)
	}

	s.publish(r.Context(), events.TopicEnvironmentCreated, events.EnvironmentCreated{Environment: env})

	writeJSON(w, http.StatusCreated, env)
}

// handleListEnvironments handles GET /v1/environments.
func (s *WarrenServer) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter model.EnvironmentFilter

	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			status := model.EnvStatus(st)
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "unknown status: "+st)
				return
			}
			filter.Status = append(filter.Status, status)
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	envs, err := s.store.ListEnvironments(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list environments")
		return
	}

	// Ensure environments is never null in JSON output.
	if envs == nil {
		envs = []*model.Environment{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"environments": envs,
		"total":        len(envs),
	})
}

// handleGetEnvironment handles GET /v1/environments/{id}.
func (s *WarrenServer) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	env, err := s.store.GetEnvironment(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "environment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get environment")
		return
	}

	writeJSON(w, http.StatusOK, env)
}

// handleExpireEnvironment handles DELETE /v1/environments/{id}.
// The environment is marked expired; the reaper performs the actual schema
// drop on its next sweep.
func (s *WarrenServer) handleExpireEnvironment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	env, err := s.store.GetEnvironment(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "environment not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get environment")
		return
	}
	if env.Status != model.EnvReady {
		writeError(w, http.StatusConflict, "environment is not ready: "+string(env.Status))
		return
	}

	if err := s.store.SetEnvironmentStatus(r.Context(), id, model.EnvExpired); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to expire environment")
		return
	}

	s.publish(r.Context(), events.TopicEnvironmentExpired, events.EnvironmentExpired{
		EnvironmentID: id,
		ExpiredAt:     time.Now().UTC(),
	})

	w.WriteHeader(http.StatusNoContent)
}
