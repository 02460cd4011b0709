package matching

import (
	"context"
	"math/rand/v2"
)

const (
	DefaultCandidateLimit = 10
	MaxCandidateLimit     = 50
)

// Candidates returns up to limit participants userID has not evaluated yet,
// in random order.
func (e *Engine) Candidates(ctx context.Context, eventID, userID int64, limit int) ([]ProfileSummary, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	if limit > MaxCandidateLimit {
		limit = MaxCandidateLimit
	}

	if _, err := e.openWindow(ctx, eventID); err != nil {
		return nil, err
	}
	if err := e.checkSwiper(ctx, eventID, userID); err != nil {
		return nil, err
	}

	eligible, err := e.gate.EligibleParticipants(ctx, eventID)
	if err != nil {
		return nil, wrapInternal("list participants", err)
	}
	evaluated, err := e.ledger.Evaluated(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	skip := make(map[int64]struct{}, len(evaluated)+1)
	skip[userID] = struct{}{}
	for _, id := range evaluated {
		skip[id] = struct{}{}
	}

	pool := make([]int64, 0, len(eligible))
	for _, id := range eligible {
		if _, ok := skip[id]; !ok {
			pool = append(pool, id)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > limit {
		pool = pool[:limit]
	}

	profiles, err := e.profiles.Summaries(ctx, eventID, pool)
	if err != nil {
		return nil, wrapInternal("load profiles", err)
	}
	out := make([]ProfileSummary, 0, len(pool))
	for _, id := range pool {
		if p, ok := profiles[id]; ok {
			if p.Photos == nil {
				p.Photos = []Photo{}
			}
			out = append(out, p)
		}
	}
	return out, nil
}
