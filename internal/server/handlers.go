package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kindredapp/kindred/internal/app"
	"github.com/kindredapp/kindred/internal/db"
	svcErr "github.com/kindredapp/kindred/internal/errors"
	"github.com/kindredapp/kindred/internal/service/daily"
	"github.com/kindredapp/kindred/internal/service/matching"
	"github.com/kindredapp/kindred/internal/service/undo"
)

// Handler exposes the matching core over HTTP JSON endpoints.
type Handler struct {
	appCtx   *app.AppContext
	matching *matching.Service
	daily    *daily.Service
	undo     *undo.Service
}

// NewHandler creates the HTTP handler set.
func NewHandler(appCtx *app.AppContext, m *matching.Service, d *daily.Service, u *undo.Service) *Handler {
	return &Handler{appCtx: appCtx, matching: m, daily: d, undo: u}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := svcErr.Map(err)
	if apiErr.Status >= http.StatusInternalServerError {
		h.appCtx.Logger.Error("request failed", "err", err)
	}
	writeJSON(w, apiErr.Status, map[string]string{"error": apiErr.Message})
}

// loadUser resolves the {id} path variable to a user, writing the error
// response itself on failure.
func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (*db.User, bool) {
	user, err := h.matching.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return user, true
}

// HandleCandidates returns the eligible candidate list for a user.
//
// GET /api/users/{id}/candidates
func (h *Handler) HandleCandidates(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	candidates, err := h.matching.FindCandidatesForUser(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

// HandleSwipe records a like/pass/superlike.
//
// POST /api/swipes {"user_id", "candidate_id", "direction"}
func (h *Handler) HandleSwipe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		CandidateID string `json:"candidate_id"`
		Direction   string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, svcErr.InvalidArgument("invalid request payload"))
		return
	}
	if req.UserID == "" || req.CandidateID == "" {
		h.writeError(w, svcErr.InvalidArgument("user_id and candidate_id are required"))
		return
	}

	user, err := h.matching.GetUser(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	candidate, err := h.matching.GetUser(r.Context(), req.CandidateID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.matching.ProcessSwipe(r.Context(), user, candidate, req.Direction)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleUndo reverses the user's last swipe if still inside the window.
//
// POST /api/users/{id}/undo
func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	result, err := h.undo.Undo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleDailyPick returns today's deterministic pick.
//
// GET /api/users/{id}/daily-pick
func (h *Handler) HandleDailyPick(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}

	pick, err := h.matching.GetDailyPick(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if pick == nil {
		writeJSON(w, http.StatusOK, map[string]any{"pick": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pick": pick})
}

// HandleDailyPickViewed marks today's pick as seen.
//
// POST /api/users/{id}/daily-pick/viewed
func (h *Handler) HandleDailyPickViewed(w http.ResponseWriter, r *http.Request) {
	if err := h.daily.MarkViewed(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Daily pick marked as viewed."})
}

// HandleDailyStatus reports quota usage for today.
//
// GET /api/users/{id}/daily-status
func (h *Handler) HandleDailyStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.daily.GetStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleLikedYou lists pending likers.
//
// GET /api/users/{id}/liked-you
func (h *Handler) HandleLikedYou(w http.ResponseWriter, r *http.Request) {
	likers, err := h.matching.FindPendingLikers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"likers": likers})
}

// HandleUnmatch ends the match with another user.
//
// POST /api/users/{id}/unmatch {"other_id"}
func (h *Handler) HandleUnmatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OtherID string `json:"other_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OtherID == "" {
		h.writeError(w, svcErr.InvalidArgument("other_id is required"))
		return
	}

	if err := h.matching.Unmatch(r.Context(), mux.Vars(r)["id"], req.OtherID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unmatched."})
}
