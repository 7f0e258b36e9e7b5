// Package server exposes the HTTP API handlers.
package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/onnwee/streampulse/advisory"
	"github.com/onnwee/streampulse/comments"
	"github.com/onnwee/streampulse/feed"
	"github.com/onnwee/streampulse/user"
)

// Deps carries the collaborators the handlers operate on. DB may be nil when
// running without a backend.
type Deps struct {
	Feed     *feed.Feed
	Comments *comments.Service
	Users    *user.Store
	Advisor  *advisory.Client
	DB       *sql.DB
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	feed     *feed.Feed
	comments *comments.Service
	users    *user.Store
	advisor  *advisory.Client
	db       *sql.DB
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{
		feed:     deps.Feed,
		comments: deps.Comments,
		users:    deps.Users,
		advisor:  deps.Advisor,
		db:       deps.DB,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleClips serves the clip feed and accepts submissions.
func (h *Handlers) HandleClips(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.feed.Clips())
	case http.MethodPost:
		var sub feed.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if strings.TrimSpace(sub.Title) == "" || strings.TrimSpace(sub.VideoURL) == "" {
			writeError(w, http.StatusBadRequest, "title and video_url are required")
			return
		}
		res := h.feed.SubmitClip(r.Context(), sub)
		writeJSON(w, http.StatusCreated, res.Clip)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// HandleClipsDispatcher routes /clips/{id}/... sub-resources.
func (h *Handlers) HandleClipsDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/clips/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	clipID := parts[0]
	switch {
	case len(parts) == 2 && parts[1] == "vote":
		h.handleVote(w, r, clipID)
	case len(parts) == 2 && parts[1] == "comments":
		h.handleComments(w, r, clipID)
	case len(parts) == 3 && parts[1] == "comments" && parts[2] == "stream":
		h.handleCommentStream(w, r, clipID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handlers) handleVote(w http.ResponseWriter, r *http.Request, clipID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := feed.ParseID(clipID)
	res := h.feed.Vote(r.Context(), id)
	if !res.Applied {
		if !h.feed.HasClip(id) {
			writeError(w, http.StatusNotFound, "clip not found")
			return
		}
		writeError(w, http.StatusConflict, "already voted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": true,
		"user":    h.users.Current(),
	})
}

// HandleStreamers serves the roster.
func (h *Handlers) HandleStreamers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.feed.Streamers())
}

// HandleStreamersDispatcher routes /streamers/{id}/... sub-resources.
func (h *Handlers) HandleStreamersDispatcher(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/streamers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "location" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.handleLocation(w, r, parts[0])
}

func (h *Handlers) handleLocation(w http.ResponseWriter, r *http.Request, streamerID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if body.Lat < -90 || body.Lat > 90 || body.Lng < -180 || body.Lng > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	res := h.feed.ReportLocation(r.Context(), feed.ParseID(streamerID), body.Lat, body.Lng)
	if !res.Applied {
		writeError(w, http.StatusNotFound, "streamer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied": true,
		"user":    h.users.Current(),
	})
}

// HandleLeaderboard serves the roster ordered by votes.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.feed.Leaderboard())
}

// HandleActivity serves the recent-activity window.
func (h *Handlers) HandleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.feed.Activities())
}

// HandlePulse serves the AI vibe check for one streamer.
func (h *Handlers) HandlePulse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := r.URL.Query().Get("streamer")
	if name == "" {
		writeError(w, http.StatusBadRequest, "streamer query parameter required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pulse": h.advisor.Pulse(r.Context(), name)})
}

// HandleTrends serves the AI trends digest across the tracked roster.
func (h *Handlers) HandleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var names []string
	for _, s := range h.feed.Streamers() {
		names = append(names, s.Name)
	}
	writeJSON(w, http.StatusOK, map[string]string{"trends": h.advisor.Trends(r.Context(), names)})
}

// HandleMe serves the current user record.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.users.Current())
}

// HandleSession applies a signed-in identity (POST) or signs out back to a
// fresh guest (DELETE). Points and voted history survive both transitions.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var sess user.Session
		if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if sess.ID == "" || sess.Username == "" {
			writeError(w, http.StatusBadRequest, "id and username are required")
			return
		}
		writeJSON(w, http.StatusOK, h.users.ApplySession(sess))
	case http.MethodDelete:
		writeJSON(w, http.StatusOK, h.users.SignOut())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
