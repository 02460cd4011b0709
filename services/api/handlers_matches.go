package api

import (
	"net/http"
)

func (a *API) handleMatches(w http.ResponseWriter, r *http.Request) {
	a.listMatches(w, r, nil)
}

func (a *API) handleEventMatches(w http.ResponseWriter, r *http.Request) {
	eventID, err := idParam(r, "eventID")
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.listMatches(w, r, &eventID)
}

func (a *API) listMatches(w http.ResponseWriter, r *http.Request, eventID *int64) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	groups, err := a.engine.Matches(ctx, userFrom(r.Context()), eventID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": groups})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if a.stats == nil {
		respondJSON(w, http.StatusNotImplemented, map[string]any{"error": "statistics are not configured", "code": "INTERNAL"})
		return
	}
	eventID, err := idParam(r, "eventID")
	if err != nil {
		a.respondError(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	figures, err := a.stats.Event(ctx, eventID)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, figures)
}
