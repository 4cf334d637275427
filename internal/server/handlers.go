package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chansync/internal/domain/logger"
	"chansync/internal/history"

	"github.com/go-chi/chi/v5"
)

const defaultRunLimit = 50

type runJSON struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

type blockJSON struct {
	Domain    string    `json:"domain"`
	BlockedAt time.Time `json:"blocked_at"`
	Remaining string    `json:"remaining"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Pl.E("Failed to encode JSON response: %v", err)
	}
}

func limitParam(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return defaultRunLimit
}

// handleListRuns lists recent sync runs over every channel.
func (s *serverStore) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.writeRuns(w, r, "")
}

// handleChannelRuns lists recent sync runs of one channel.
func (s *serverStore) handleChannelRuns(w http.ResponseWriter, r *http.Request) {
	s.writeRuns(w, r, chi.URLParam(r, "channel"))
}

func (s *serverStore) writeRuns(w http.ResponseWriter, r *http.Request, channel string) {
	out := []runJSON{}
	if s.history != nil {
		runs, err := s.history.List(r.Context(), channel, limitParam(r))
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		for _, run := range runs {
			out = append(out, toRunJSON(run))
		}
	}
	writeJSON(w, out)
}

func toRunJSON(r history.Run) runJSON {
	return runJSON{
		ID:         r.ID,
		Channel:    r.Channel,
		Source:     string(r.Source),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Scanned:    r.Scanned,
		Downloaded: r.Downloaded,
		Failed:     r.Failed,
		Error:      r.Err,
	}
}

// handleBlocked lists domains currently blocked after rate limiting.
func (s *serverStore) handleBlocked(w http.ResponseWriter, _ *http.Request) {
	out := []blockJSON{}
	if s.blocker != nil {
		for domain := range s.blocker.All() {
			blocked, at, remaining := s.blocker.IsBlocked(domain)
			if !blocked {
				continue
			}
			out = append(out, blockJSON{Domain: domain, BlockedAt: at, Remaining: remaining.Round(time.Second).String()})
		}
	}
	writeJSON(w, out)
}
