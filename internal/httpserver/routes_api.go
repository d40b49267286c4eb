// internal/httpserver/routes_api.go
//
// Read-only admin API over the round engine.
//
// Routes (all require auth):
//   GET /api/me                  → subject of the presented token
//   GET /api/status              → queue overview (game.Snapshot)
//   GET /api/queue/{position}    → one queued round (404 when out of range)
//   GET /api/leaderboard?limit=  → top users by wins (default 10, max 100)
//   GET /api/wins/{userID}       → one user's win count

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/itemguess/internal/game"
)

func (s *Server) mountAPI() {
	s.r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Get("/me", s.handleMe)
		r.Get("/status", s.handleStatus)
		r.Get("/queue/{position}", s.handleRound)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/wins/{userID}", s.handleWins)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"subject": subjectFrom(r.Context())})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Status(s.now()))
}

func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_position")
		return
	}
	v, err := s.eng.RoundAt(pos, s.now())
	if errors.Is(err, game.ErrInvalidPosition) {
		writeError(w, http.StatusNotFound, "no_round")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "engine_error")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return
		}
		limit = min(n, 100)
	}
	writeJSON(w, http.StatusOK, s.eng.Leaderboard(limit))
}

func (s *Server) handleWins(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, map[string]any{"userId": id, "wins": s.eng.Wins(id)})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
