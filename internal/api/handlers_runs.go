package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/regstock/internal/corpus"
	"github.com/dgallion1/regstock/internal/pipeline"
)

// handleRefresh starts a corpus refresh run. Runs replace the whole
// snapshot, so only one may be in flight at a time.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Trigger()
	if errors.Is(err, pipeline.ErrRunInFlight) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		jsonError(w, "failed to start run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusAccepted, run.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run := s.runs.GetRun(chi.URLParam(r, "runID"))
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, run.Snapshot())
}

// handleRunHistory lists recent persisted run summaries, which outlive
// the in-memory run store's TTL.
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentRuns(r.Context(), 50)
	if err != nil {
		jsonError(w, "failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []corpus.RunRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"runs": recs})
}
