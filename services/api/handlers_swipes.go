package api

import (
	"net/http"
)

type swipeRequest struct {
	UserID int64 `json:"user_id"`
}

func (a *API) decodeSwipe(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		a.respondError(w, r, err)
		return 0, 0, false
	}
	var req swipeRequest
	if err := decodeJSON(r, &req); err != nil {
		a.badRequest(w, r, "invalid request body")
		return 0, 0, false
	}
	return eventID, req.UserID, true
}

func (a *API) handleCandidates(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	profiles, err := a.engine.Candidates(ctx, eventID, userFrom(r.Context()), int(limit))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (a *API) handleLike(w http.ResponseWriter, r *http.Request) {
	eventID, likedID, ok := a.decodeSwipe(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.engine.Like(ctx, eventID, userFrom(r.Context()), likedID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) handlePass(w http.ResponseWriter, r *http.Request) {
	eventID, likedID, ok := a.decodeSwipe(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if _, err := a.engine.Pass(ctx, eventID, userFrom(r.Context()), likedID); err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}
