// Package stats aggregates engagement figures for an event from the matching
// tables. It reads through the pgx pool and never writes.
package stats

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"eventmatch/pkg/db"
)

// EventStats summarizes swiping and messaging activity of one event.
type EventStats struct {
	EventID           int64   `db:"event_id" json:"event_id"`
	Swipes            int64   `db:"swipes" json:"swipes"`
	Likes             int64   `db:"likes" json:"likes"`
	Passes            int64   `db:"-" json:"passes"`
	Swipers           int64   `db:"swipers" json:"swipers"`
	ReciprocatedLikes int64   `db:"reciprocated_likes" json:"reciprocated_likes"`
	Matches           int64   `db:"matches" json:"matches"`
	ArchivedMatches   int64   `db:"archived_matches" json:"archived_matches"`
	Messages          int64   `db:"messages" json:"messages"`
	ReciprocityRate   float64 `db:"-" json:"reciprocity_rate"`
}

const eventStatsQuery = `
SELECT
	$1::bigint AS event_id,
	(SELECT COUNT(*) FROM swipes WHERE event_id = $1) AS swipes,
	(SELECT COUNT(*) FROM swipes WHERE event_id = $1 AND is_like) AS likes,
	(SELECT COUNT(DISTINCT liker_id) FROM swipes WHERE event_id = $1) AS swipers,
	(SELECT COUNT(*) FROM swipes s
		WHERE s.event_id = $1 AND s.is_like AND EXISTS (
			SELECT 1 FROM swipes r
			WHERE r.event_id = s.event_id AND r.liker_id = s.liked_id AND r.liked_id = s.liker_id AND r.is_like
		)) AS reciprocated_likes,
	(SELECT COUNT(*) FROM matches WHERE event_id = $1) AS matches,
	(SELECT COUNT(*) FROM matches WHERE event_id = $1 AND is_archived) AS archived_matches,
	(SELECT COUNT(*) FROM messages m JOIN matches mt ON mt.id = m.match_id WHERE mt.event_id = $1) AS messages`

type getFunc func(ctx context.Context, dest any, query string, args ...any) error

// Service runs the aggregation queries.
type Service struct {
	get getFunc
}

func New(pool *pgxpool.Pool) (*Service, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &Service{get: func(ctx context.Context, dest any, query string, args ...any) error {
		return db.Get(ctx, pool, dest, query, args...)
	}}, nil
}

// Event returns the figures for eventID. Unknown events report zeros.
func (s *Service) Event(ctx context.Context, eventID int64) (EventStats, error) {
	var out EventStats
	if err := s.get(ctx, &out, eventStatsQuery, eventID); err != nil {
		return EventStats{}, err
	}
	out.finish()
	return out, nil
}

// finish derives the fields not selected directly.
func (e *EventStats) finish() {
	e.Passes = e.Swipes - e.Likes
	if e.Likes > 0 {
		e.ReciprocityRate = float64(e.ReciprocatedLikes) / float64(e.Likes)
	}
}
