package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/kotoba/internal/analogy"
	"github.com/hyperjump/kotoba/internal/engine"
	"github.com/hyperjump/kotoba/internal/keyword"
	"github.com/hyperjump/kotoba/internal/models"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.engine.Current() == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalogy(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.AnalogyQuery{
		A: params.Get("A"),
		B: params.Get("B"),
		C: params.Get("C"),
	}
	if v := params.Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "top_k must be an integer")
			return
		}
		query.TopK = n
	}
	s.logger.Debug("analogy request", zap.String("a", query.A), zap.String("b", query.B), zap.String("c", query.C))

	result, err := s.engine.Analogy(r.Context(), &query)
	if err != nil {
		s.respondEngineError(w, "analogy", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	offset, limit, ok := s.pagination(w, r)
	if !ok {
		return
	}
	entries, err := s.engine.Logs(r.Context(), offset, limit)
	if err != nil {
		s.respondEngineError(w, "logs", err)
		return
	}
	rows := make([][4]*string, len(entries))
	for i, e := range entries {
		rows[i] = e.Tuple()
	}
	s.respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := models.NeighborsQuery{Word: params.Get("word")}
	if v := params.Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "n must be an integer")
			return
		}
		query.N = n
	}
	result, err := s.engine.Neighbors(r.Context(), &query)
	var unknown *analogy.UnknownWordError
	if errors.As(err, &unknown) {
		s.respondJSON(w, http.StatusNotFound, map[string]any{
			"error":         unknown.Error(),
			"unknown_words": unknown.Words,
			"suggestions":   unknown.Suggestions,
		})
		return
	}
	if err != nil {
		s.respondEngineError(w, "neighbors", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := params.Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	_, limit, ok := s.pagination(w, r)
	if !ok {
		return
	}
	opts := &keyword.SearchOptions{
		AnswerOnly: params.Get("answer_only") == "true",
		Fuzzy:      params.Get("fuzzy") == "true",
	}
	hits, err := s.engine.SearchLogs(r.Context(), q, limit, opts)
	if errors.Is(err, engine.ErrNoLogStore) {
		s.respondError(w, http.StatusNotImplemented, "query log not enabled")
		return
	}
	if err != nil {
		s.respondEngineError(w, "log search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"query": q, "hits": hits})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.respondEngineError(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("reload requested")
	// Loading a large vocabulary outlives the request timeout; finish it even if the client leaves.
	if err := s.engine.Reload(context.WithoutCancel(r.Context())); err != nil {
		s.logger.Error("reload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, s.engine.Stats())
}

// pagination reads offset and limit; limit 0 means no limit.
func (s *Server) pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	params := r.URL.Query()
	var offset, limit int
	for _, p := range []struct {
		name string
		dst  *int
	}{{"offset", &offset}, {"limit", &limit}} {
		v := params.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	return offset, limit, true
}

func (s *Server) respondEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNotReady):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		s.respondError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
