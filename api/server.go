package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"propwatch/models"
	"propwatch/services"
)

// Server exposes the ingestion webhook and the project endpoints. Auth and
// UI live elsewhere; this surface is for the scraper itself and for
// internal dashboards.
type Server struct {
	ingest       *services.IngestService
	consolidator *services.Consolidator
	jobs         *services.JobService
	agencies     *services.AgencyService
	shared       *services.SharedPropertyService
}

func NewServer(
	ingest *services.IngestService,
	consolidator *services.Consolidator,
	jobs *services.JobService,
	agencies *services.AgencyService,
	shared *services.SharedPropertyService,
) *Server {
	return &Server{
		ingest:       ingest,
		consolidator: consolidator,
		jobs:         jobs,
		agencies:     agencies,
		shared:       shared,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/scrape-results", s.handleScrapeResults).Methods(http.MethodPost)
	r.HandleFunc("/api/projects/{id}/consolidate", s.handleConsolidate).Methods(http.MethodPost)
	r.HandleFunc("/api/projects/{id}/agencies/consolidate", s.handleConsolidateAgencies).Methods(http.MethodPost)
	r.HandleFunc("/api/projects/{id}/agencies", s.handleAgencies).Methods(http.MethodGet)
	r.HandleFunc("/api/projects/{id}/shared-properties", s.handleSharedProperties).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{id}", s.handleJobStatus).Methods(http.MethodGet)
	return r
}

func (s *Server) handleScrapeResults(w http.ResponseWriter, r *http.Request) {
	var payload models.IngestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	stored, err := s.ingest.Ingest(r.Context(), &payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"stored": stored})
}

func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFrom(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("async") == "1" {
		job, err := s.jobs.EnqueueConsolidation(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
		return
	}

	deleted, err := s.consolidator.ConsolidateDuplicateProperties(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted_count": deleted})
}

func (s *Server) handleConsolidateAgencies(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Loser  string `json:"loser"`
		Keeper string `json:"keeper"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Loser == "" || body.Keeper == "" {
		writeError(w, http.StatusBadRequest, "loser and keeper are required")
		return
	}
	if body.Loser == body.Keeper {
		writeError(w, http.StatusBadRequest, "loser and keeper are the same agency")
		return
	}

	moved, err := s.consolidator.ConsolidateAgencies(r.Context(), projectID, body.Loser, body.Keeper)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"moved_listings": moved})
}

func (s *Server) handleAgencies(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFrom(w, r)
	if !ok {
		return
	}

	stats, err := s.agencies.ProjectAgencyStats(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"agencies": stats})
}

func (s *Server) handleSharedProperties(w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectIDFrom(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("detect") == "1" {
		if _, err := s.shared.DetectSharedProperties(r.Context(), projectID); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	matches, err := s.shared.Matches(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

func projectIDFrom(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var notFoundErr *services.NotFoundError
	if errors.As(err, &notFoundErr) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	// A consolidation that failed partway still deleted rows; the caller
	// needs that count, not just "internal error".
	var consolidationErr *services.ConsolidationError
	if errors.As(err, &consolidationErr) {
		log.Printf("API error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":         "consolidation failed partway",
			"deleted_count": consolidationErr.Deleted,
		})
		return
	}

	log.Printf("API error: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
