package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"eventmatch/services/matching"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func statusFor(code matching.Code) int {
	switch code {
	case matching.CodeValidation:
		return http.StatusBadRequest
	case matching.CodeNotFound:
		return http.StatusNotFound
	case matching.CodeForbidden, matching.CodeUserBlocked, matching.CodeMatchArchived,
		matching.CodeEventExpired, matching.CodeEventNotStarted:
		return http.StatusForbidden
	case matching.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError translates engine errors into the JSON error body. Internal
// failures are logged and reported without their cause.
func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	code := matching.CodeOf(err)
	status := statusFor(code)
	msg := err.Error()
	var engineErr *matching.Error
	if errors.As(err, &engineErr) {
		msg = engineErr.Message
	}
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal error"
	}
	respondJSON(w, status, map[string]any{"error": msg, "code": code})
}

func (a *API) badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	a.respondError(w, r, matching.Validation(msg))
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

// idParam reads a positive integer path parameter.
func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, matching.Validation("invalid " + name)
	}
	return id, nil
}

// intQuery reads an optional non-negative integer query parameter.
func intQuery(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, matching.Validation("invalid " + name)
	}
	return v, nil
}
