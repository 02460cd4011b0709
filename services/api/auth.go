package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// userHeader carries the caller id set by the upstream auth gateway.
const userHeader = "X-User-ID"

type ctxKey int

const userKey ctxKey = iota

func parseUser(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(userHeader)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUser(r)
		if !ok {
			respondJSON(w, http.StatusUnauthorized, map[string]any{
				"error": "missing or invalid " + userHeader,
				"code":  "UNAUTHORIZED",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

func userFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey).(int64)
	return id
}

// keyByUser buckets rate limits per caller rather than per proxy address.
func keyByUser(r *http.Request) (string, error) {
	if id, ok := parseUser(r); ok {
		return "user:" + strconv.FormatInt(id, 10), nil
	}
	return "", nil
}
