package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/warren/internal/events"
	"github.com/alfredjeanlab/warren/internal/idgen"
	"github.com/alfredjeanlab/warren/internal/model"
	"github.com/alfredjeanlab/warren/internal/store"
)

type startStreamInput struct {
	EnvironmentID string   `json:"environment_id"`
	RunID         string   `json:"run_id"`
	Tables        []string `json:"tables"`
}

type startStreamOutput struct {
	EnvironmentID string `json:"environment_id"`
	RunID         string `json:"run_id"`
	SlotName      string `json:"slot_name"`
}

// handleStartStream handles POST /v1/streams. A missing run_id is generated.
func (s *WarrenServer) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var in startStreamInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.EnvironmentID == "" {
		writeError(w, http.StatusBadRequest, "environment_id is required")
		return
	}

	env, err := s.store.GetEnvironment(r.Context(), in.EnvironmentID)
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

	runID := in.RunID
	if runID == "" {
		runID, err = idgen.NewRunID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate run id")
			return
		}
	}

	slotName, err := s.streams.StartStream(r.Context(), env.ID, runID, in.Tables, env.Schema)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start stream")
		return
	}

	s.publish(r.Context(), events.TopicStreamStarted, events.StreamStarted{
		EnvironmentID: env.ID,
		RunID:         runID,
		SlotName:      slotName,
	})

	writeJSON(w, http.StatusCreated, startStreamOutput{
		EnvironmentID: env.ID,
		RunID:         runID,
		SlotName:      slotName,
	})
}

// handleListStreams handles GET /v1/streams.
func (s *WarrenServer) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	slots := s.streams.ActiveStreams()
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"streams": slots,
		"total":   len(slots),
	})
}

// handleStopStream handles DELETE /v1/streams. The stream is identified by
// the environment_id and run_id query parameters; drop=true also drops the
// replication slot.
func (s *WarrenServer) handleStopStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	environmentID := q.Get("environment_id")
	runID := q.Get("run_id")
	if environmentID == "" || runID == "" {
		writeError(w, http.StatusBadRequest, "environment_id and run_id are required")
		return
	}
	dropSlot := q.Get("drop") == "true"

	slotName, err := s.streams.StopStream(r.Context(), environmentID, runID, dropSlot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stop stream")
		return
	}

	s.publish(r.Context(), events.TopicStreamStopped, events.StreamStopped{
		EnvironmentID: environmentID,
		RunID:         runID,
		SlotName:      slotName,
	})

	w.WriteHeader(http.StatusNoContent)
}
