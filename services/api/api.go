// Package api exposes the matching engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"eventmatch/services/matching"
	"eventmatch/services/stats"
)

// Engine is the subset of *matching.Engine the handlers call.
type Engine interface {
	Candidates(ctx context.Context, eventID, userID int64, limit int) ([]matching.ProfileSummary, error)
	Like(ctx context.Context, eventID, likerID, likedID int64) (matching.LikeResult, error)
	Pass(ctx context.Context, eventID, likerID, likedID int64) (matching.Swipe, error)
	Matches(ctx context.Context, userID int64, eventID *int64) ([]matching.EventMatches, error)
	Conversations(ctx context.Context, userID int64, eventID *int64) ([]matching.ConversationSummary, error)
	MatchFor(ctx context.Context, matchID, userID int64) (matching.Match, error)
	SendMessage(ctx context.Context, matchID, senderID int64, content string) (matching.Message, error)
	Messages(ctx context.Context, matchID, userID int64, limit int, beforeID int64) (matching.Thread, error)
	MarkMessageAsRead(ctx context.Context, messageID, userID int64) (matching.Message, error)
	ToggleLike(ctx context.Context, messageID, userID int64) (matching.Message, error)
}

// StatsReader serves the engagement figures endpoint.
type StatsReader interface {
	Event(ctx context.Context, eventID int64) (stats.EventStats, error)
}

// Pinger reports whether the database is reachable.
type Pinger func(ctx context.Context) error

// Config controls runtime behaviour for the API handlers.
type Config struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	MessagePageSize    int
}

// Options collects the API dependencies. Engine is required.
type Options struct {
	Engine   Engine
	Stats    StatsReader
	Ready    Pinger
	Realtime http.Handler
	Metrics  http.Handler
	Logger   zerolog.Logger
	Config   Config
}

// API wires dependencies and configuration for HTTP handlers.
type API struct {
	engine   Engine
	stats    StatsReader
	ready    Pinger
	realtime http.Handler
	metrics  http.Handler
	log      zerolog.Logger
	config   Config
}

// New initialises the API layer with defaults applied to the provided configuration.
func New(opts Options) (*API, error) {
	if opts.Engine == nil {
		return nil, errors.New("engine is required")
	}

	cfg := opts.Config
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 300
	}
	if cfg.MessagePageSize <= 0 {
		cfg.MessagePageSize = matching.DefaultMessagePage
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	return &API{
		engine:   opts.Engine,
		stats:    opts.Stats,
		ready:    opts.Ready,
		realtime: opts.Realtime,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		config:   cfg,
	}, nil
}
