package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/comps/internal/adapters/repository"
	service "github.com/okian/comps/internal/app"
	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/ranking"
)

type searchResponse struct {
	Properties []*model.PropertyRecord `json:"properties"`
	Count      int                     `json:"count"`
}

type countiesResponse struct {
	Counties []string `json:"counties"`
}

// handleFindComparables handles POST /api/properties/comparables.
func (s *Server) handleFindComparables(w http.ResponseWriter, r *http.Request) {
	var req service.ComparablesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, WrapKind("api.comparables", ErrBadRequest, err))
		return
	}
	resp, err := s.deps.Comparables(r.Context(), req)
	if err != nil {
		s.fail(w, r, Wrap("api.comparables", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetComparables handles GET /api/properties/{id}/comparables.
func (s *Server) handleGetComparables(w http.ResponseWriter, r *http.Request) {
	overrides, err := queryOverrides(r)
	if err != nil {
		s.fail(w, r, WrapKind("api.comparables_by_id", ErrBadRequest, err))
		return
	}
	resp, err := s.deps.ComparablesByID(r.Context(), chi.URLParam(r, "id"), overrides)
	if err != nil {
		s.fail(w, r, Wrap("api.comparables_by_id", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetProperty handles GET /api/properties/{id}.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Property(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, Wrap("api.property", err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSearch handles POST /api/properties/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var f repository.Filter
	if err := s.decode(w, r, &f); err != nil {
		s.fail(w, r, WrapKind("api.search", ErrBadRequest, err))
		return
	}
	recs, err := s.deps.Search(r.Context(), f)
	if err != nil {
		s.fail(w, r, Wrap("api.search", err))
		return
	}
	if recs == nil {
		recs = []*model.PropertyRecord{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Properties: recs, Count: len(recs)})
}

// handleCounties handles GET /api/counties.
func (s *Server) handleCounties(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countiesResponse{Counties: s.deps.Counties()})
}

// handleDataStats handles GET /api/data/stats.
func (s *Server) handleDataStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.DataStats(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.data_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// queryOverrides reads top_k and min_similarity from the query string.
func queryOverrides(r *http.Request) (*ranking.Overrides, error) {
	q := r.URL.Query()
	var o ranking.Overrides
	set := false
	if v := strings.TrimSpace(q.Get("top_k")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		o.TopK = &n
		set = true
	}
	if v := strings.TrimSpace(q.Get("min_similarity")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, err
		}
		o.MinSimilarity = &f
		set = true
	}
	if !set {
		return nil, nil
	}
	return &o, nil
}
