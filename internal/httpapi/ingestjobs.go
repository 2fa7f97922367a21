package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/xpnow/bugpanel/internal/apierr"
)

type createIngestJobRequest struct {
	SourceFileID string `json:"source_file_id"`
}

func (s *Server) createIngestJob(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createIngestJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	if req.SourceFileID == "" {
		writeError(w, apierr.Validation("source_file_id is required"))
		return
	}
	job, err := s.jobs.Create(r.Context(), req.SourceFileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) listIngestJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	jobs, err := s.jobs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) getIngestJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, apierr.Validation("id must be an integer"))
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
