// Package server exposes committed snapshots, diffs, and cached AI results
// over a read-only JSON API. It never mutates the store.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/store"
)

// Server holds the API's dependencies.
type Server struct {
	store store.Store
	rates diff.CurrencyRates
	log   *zap.Logger
}

func New(st store.Store, rates diff.CurrencyRates) *Server {
	return &Server{
		store: st,
		rates: rates,
		log:   zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/snapshots/{id}", s.handleGetSnapshot)
		r.Get("/snapshots/{id}/listings/{listingID}", s.handleGetListing)
		r.Get("/diff", s.handleDiff)
		r.Get("/results", s.handleGetResult)
	})

	return r
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	filter := store.SnapshotFilter{SearchName: r.URL.Query().Get("search")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	snaps, err := s.store.ListSnapshots(r.Context(), filter)
	if err != nil {
		s.log.Error("list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}

	// Listing bodies are large; the index returns headers only.
	type header struct {
		ID         string `json:"id"`
		SearchName string `json:"search_name"`
		TakenAt    string `json:"taken_at"`
		CheckIn    string `json:"check_in"`
		CheckOut   string `json:"check_out"`
		Listings   int    `json:"listings"`
		Incomplete bool   `json:"incomplete"`
	}
	headers := make([]header, len(snaps))
	for i, sn := range snaps {
		headers[i] = header{
			ID:         sn.ID,
			SearchName: sn.SearchName,
			TakenAt:    sn.TakenAt.UTC().Format("2006-01-02T15:04:05Z"),
			CheckIn:    sn.CheckIn,
			CheckOut:   sn.CheckOut,
			Listings:   len(sn.Listings),
			Incomplete: sn.Incomplete,
		}
	}
	writeJSON(w, http.StatusOK, headers)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	listing, ok := snap.Listing(chi.URLParam(r, "listingID"))
	if !ok {
		writeError(w, http.StatusNotFound, "listing not in snapshot")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	fromID := r.URL.Query().Get("from")
	toID := r.URL.Query().Get("to")
	if fromID == "" || toID == "" {
		writeError(w, http.StatusBadRequest, "from and to snapshot ids are required")
		return
	}

	from, err := s.store.GetSnapshot(r.Context(), fromID)
	if err != nil {
		writeError(w, http.StatusNotFound, "from snapshot not found")
		return
	}
	to, err := s.store.GetSnapshot(r.Context(), toID)
	if err != nil {
		writeError(w, http.StatusNotFound, "to snapshot not found")
		return
	}

	writeJSON(w, http.StatusOK, diff.Diff(from, to, s.rates))
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := model.ResultKey{
		ListingID:     q.Get("listing_id"),
		Fingerprint:   q.Get("fingerprint"),
		PromptVersion: q.Get("prompt_version"),
		Model:         q.Get("model"),
	}
	if key.ListingID == "" || key.Fingerprint == "" || key.PromptVersion == "" || key.Model == "" {
		writeError(w, http.StatusBadRequest,
			"listing_id, fingerprint, prompt_version, and model are required")
		return
	}

	result, err := s.store.GetAIResult(r.Context(), key)
	if err != nil {
		s.log.Error("get ai result", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "store error")
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "no result for key")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
