package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"eventmatch/services/matching"
)

func (a *API) handleConversations(w http.ResponseWriter, r *http.Request) {
	a.listConversations(w, r, nil)
}

func (a *API) handleEventConversations(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.listConversations(w, r, &eventID)
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request, eventID *int64) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	list, err := a.engine.Conversations(ctx, userFrom(r.Context()), eventID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": list})
}

// scopedMatch resolves the matchID path parameter. Under /events/{eventID}
// the match must belong to that event.
func (a *API) scopedMatch(ctx context.Context, r *http.Request) (int64, error) {
	matchID, err := idParam(r, "matchID")
	if err != nil {
		return 0, err
	}
	if chi.URLParam(r, "eventID") == "" {
		return matchID, nil
	}
	eventID, err := idParam(r, "eventID")
	if err != nil {
		return 0, err
	}
	m, err := a.engine.MatchFor(ctx, matchID, userFrom(r.Context()))
	if err != nil {
		return 0, err
	}
	if m.EventID != eventID {
		return 0, matching.NotFound("match not found in this event")
	}
	return matchID, nil
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	matchID, err := a.scopedMatch(ctx, r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	if limit == 0 {
		limit = int64(a.config.MessagePageSize)
	}
	beforeID, err := intQuery(r, "before_id")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	thread, err := a.engine.Messages(ctx, matchID, userFrom(r.Context()), int(limit), beforeID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, thread)
}

func (a *API) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.badRequest(w, r, "invalid request body")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	matchID, err := a.scopedMatch(ctx, r)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	msg, err := a.engine.SendMessage(ctx, matchID, userFrom(r.Context()), req.Content)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	a.messageAction(w, r, a.engine.MarkMessageAsRead)
}

func (a *API) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	a.messageAction(w, r, a.engine.ToggleLike)
}

func (a *API) messageAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64, int64) (matching.Message, error)) {
	messageID, err := idParam(r, "messageID")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	msg, err := fn(ctx, messageID, userFrom(r.Context()))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}
