package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/comps/internal/domain/model"
)

type jobAck struct {
	JobID     string          `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Duplicate bool            `json:"duplicate"`
}

// handleSubmitJob handles POST /api/comparables/jobs. New jobs are answered
// with 202, replays of a known job id with 200.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var job model.Job
	if err := s.decode(w, r, &job); err != nil {
		s.fail(w, r, WrapKind("api.submit_job", ErrBadRequest, err))
		return
	}
	st, dup, err := s.deps.SubmitJob(r.Context(), job)
	if err != nil {
		s.fail(w, r, Wrap("api.submit_job", err))
		return
	}
	status := http.StatusAccepted
	if dup {
		status = http.StatusOK
	}
	writeJSON(w, status, jobAck{JobID: st.JobID, Status: st.Status, Duplicate: dup})
}

// handleGetJob handles GET /api/comparables/jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.deps.Job(id)
	if !ok {
		s.fail(w, r, NewKind("api.job "+id, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
