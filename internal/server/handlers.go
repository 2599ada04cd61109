package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sw33tLie/statscope/pkg/batch"
	"github.com/sw33tLie/statscope/pkg/orchestrator"
	"github.com/sw33tLie/statscope/pkg/stats"
	"github.com/sw33tLie/statscope/pkg/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeProfiles reads an optional {"<platform>": "<url>"} body.
func decodeProfiles(r *http.Request) (map[stats.Platform]string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	out := make(map[stats.Platform]string, len(raw))
	for k, v := range raw {
		p, err := stats.ParsePlatform(k)
		if err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !orchestrator.ValidEntityID(id) {
		http.Error(w, orchestrator.ErrInvalidEntity.Error(), http.StatusBadRequest)
		return
	}
	profiles, err := decodeProfiles(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if profiles == nil {
		rec, err := s.cfg.Store.GetEntity(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "no profiles stored for entity", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		profiles = rec.Profiles
	}

	res, err := s.cfg.Scraper.ScrapeEntity(r.Context(), id, profiles)
	if errors.Is(err, orchestrator.ErrInvalidEntity) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusResponse struct {
	ScrapingStatus map[stats.Platform]stats.ScrapeStatus `json:"scrapingStatus"`
	Aggregate      *stats.AggregateStats                 `json:"aggregate,omitempty"`
	LastUpdated    any                                   `json:"lastUpdated"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.GetEntity(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := statusResponse{ScrapingStatus: rec.ScrapingStatus, Aggregate: rec.Aggregate}
	if !rec.LastUpdated.IsZero() {
		resp.LastUpdated = rec.LastUpdated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !orchestrator.ValidEntityID(id) {
		http.Error(w, orchestrator.ErrInvalidEntity.Error(), http.StatusBadRequest)
		return
	}
	profiles, err := decodeProfiles(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("expected a JSON object of platform URLs: %v", err), http.StatusBadRequest)
		return
	}
	if profiles == nil {
		http.Error(w, "expected a JSON object of platform URLs", http.StatusBadRequest)
		return
	}
	if err := s.cfg.Store.SetProfiles(r.Context(), id, profiles); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBatchRun starts a manual run in the background, or runs it inline
// and returns the report when ?wait=true.
func (s *Server) handleBatchRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Batch.Running() {
		http.Error(w, batch.ErrRunInProgress.Error(), http.StatusConflict)
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		rep, err := s.cfg.Batch.Trigger(r.Context(), "manual")
		if errors.Is(err, batch.ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rep.Record())
		return
	}

	select {
	case s.runs <- struct{}{}:
	default:
		http.Error(w, batch.ErrRunInProgress.Error(), http.StatusConflict)
		return
	}
	go func() {
		defer func() { <-s.runs }()
		if _, err := s.cfg.Batch.Trigger(context.Background(), "manual"); err != nil {
			s.log.Errorf("manual batch run: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleBatchRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.cfg.Store.ListRuns(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
