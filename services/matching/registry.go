package matching

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const matchSavepoint = "match_insert"

// Registry derives matches from the ledger and owns their archival state.
type Registry struct {
	orm     *gorm.DB
	ledger  *Ledger
	log     zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewRegistry(orm *gorm.DB, ledger *Ledger, log zerolog.Logger, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Registry{orm: orm, ledger: ledger, log: log, metrics: metrics, now: ledger.now}
}

// LikeOutcome reports the result of a like. Match is nil when no mutual like
// exists yet. Created is true only for the caller whose insert produced the row.
type LikeOutcome struct {
	Match   *Match
	Created bool
}

func canonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// LikeAndMaybeMatch records likerID's like and creates the match when the
// reciprocal like exists. Concurrent opposite likes yield exactly one row;
// the caller that did not insert it gets the existing match back.
func (r *Registry) LikeAndMaybeMatch(ctx context.Context, eventID, likerID, likedID int64) (LikeOutcome, error) {
	if likerID == likedID {
		return LikeOutcome{}, Validation("cannot like yourself")
	}

	swiped, err := r.ledger.HasSwiped(ctx, eventID, likerID, likedID)
	if err != nil {
		return LikeOutcome{}, err
	}
	if swiped {
		return LikeOutcome{}, Conflict("user already evaluated in this event")
	}

	var out LikeOutcome
	err = r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := r.ledger.in(tx)
		if _, err := ledger.RecordSwipe(ctx, eventID, likerID, likedID, true); err != nil {
			return err
		}
		reciprocal, err := ledger.FindReciprocal(ctx, eventID, likerID, likedID)
		if err != nil || reciprocal == nil {
			return err
		}
		out, err = r.insertMatch(ctx, tx, eventID, likerID, likedID)
		return err
	})
	if err != nil {
		return LikeOutcome{}, asEngineError("like", err)
	}
	r.metrics.swipes.WithLabelValues("like").Inc()
	r.recordCreated(out)

	if out.Match == nil {
		// Under read committed, a reciprocal like committed while our
		// transaction was open is invisible to its lookup. Whichever side
		// commits last sees the other here.
		out, err = r.confirmMutual(ctx, eventID, likerID, likedID)
		if err != nil {
			return LikeOutcome{}, err
		}
	}
	return out, nil
}

func (r *Registry) confirmMutual(ctx context.Context, eventID, likerID, likedID int64) (LikeOutcome, error) {
	reciprocal, err := r.ledger.FindReciprocal(ctx, eventID, likerID, likedID)
	if err != nil || reciprocal == nil {
		return LikeOutcome{}, err
	}

	var out LikeOutcome
	err = r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = r.insertMatch(ctx, tx, eventID, likerID, likedID)
		return err
	})
	if err != nil {
		return LikeOutcome{}, asEngineError("confirm match", err)
	}
	r.recordCreated(out)
	return out, nil
}

// recordCreated counts and logs a match once its transaction has committed.
func (r *Registry) recordCreated(out LikeOutcome) {
	if !out.Created || out.Match == nil {
		return
	}
	m := out.Match
	r.metrics.matches.Inc()
	r.log.Info().Int64("match_id", m.ID).Int64("event_id", m.EventID).
		Int64("user_low_id", m.UserLowID).Int64("user_high_id", m.UserHighID).Msg("match created")
}

// insertMatch must run inside tx. A unique violation rolls back to the
// savepoint so the surrounding swipe insert survives, then the winner's row
// is fetched.
func (r *Registry) insertMatch(ctx context.Context, tx *gorm.DB, eventID, a, b int64) (LikeOutcome, error) {
	low, high := canonicalPair(a, b)
	row := matchModel{
		EventID:    eventID,
		UserLowID:  low,
		UserHighID: high,
		CreatedAt:  r.now(),
	}

	if err := tx.SavePoint(matchSavepoint).Error; err != nil {
		return LikeOutcome{}, err
	}
	err := tx.WithContext(ctx).Create(&row).Error
	if err == nil {
		m := row.toAPI()
		return LikeOutcome{Match: &m, Created: true}, nil
	}
	if !isUniqueViolation(err) {
		return LikeOutcome{}, err
	}

	if err := tx.RollbackTo(matchSavepoint).Error; err != nil {
		return LikeOutcome{}, err
	}
	existing, err := findPair(ctx, tx, eventID, low, high)
	if err != nil {
		return LikeOutcome{}, err
	}
	if existing == nil {
		return LikeOutcome{}, errors.New("match insert conflicted but no row exists")
	}
	r.metrics.raceLosses.Inc()
	r.log.Debug().Int64("match_id", existing.ID).Int64("event_id", eventID).Msg("mutual like race lost, returning existing match")
	return LikeOutcome{Match: existing}, nil
}

func findPair(ctx context.Context, orm *gorm.DB, eventID, low, high int64) (*Match, error) {
	var row matchModel
	err := orm.WithContext(ctx).
		Where("event_id = ? AND user_low_id = ? AND user_high_id = ?", eventID, low, high).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	m := row.toAPI()
	return &m, nil
}

// FindByPair looks up the match between two users regardless of argument order.
func (r *Registry) FindByPair(ctx context.Context, eventID, userA, userB int64) (*Match, error) {
	low, high := canonicalPair(userA, userB)
	m, err := findPair(ctx, r.orm, eventID, low, high)
	if err != nil {
		return nil, wrapInternal("find match", err)
	}
	return m, nil
}

func (r *Registry) Get(ctx context.Context, matchID int64) (Match, error) {
	var row matchModel
	err := r.orm.WithContext(ctx).Where("id = ?", matchID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Match{}, NotFound("match not found")
	case err != nil:
		return Match{}, wrapInternal("get match", err)
	}
	return row.toAPI(), nil
}

// ForUser lists userID's matches, newest first, optionally within one event.
func (r *Registry) ForUser(ctx context.Context, userID int64, eventID *int64) ([]Match, error) {
	q := r.orm.WithContext(ctx).
		Where("(user_low_id = ? OR user_high_id = ?)", userID, userID)
	if eventID != nil {
		q = q.Where("event_id = ?", *eventID)
	}

	var rows []matchModel
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, wrapInternal("list matches", err)
	}
	out := make([]Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	return out, nil
}

// ArchiveForUser freezes every match of userID in eventID. Messages are kept.
func (r *Registry) ArchiveForUser(ctx context.Context, eventID, userID int64) (int64, error) {
	return r.setArchived(ctx, eventID, userID, true, nil)
}

// UnarchiveForUser restores read/write access to userID's matches in eventID
// whose counterpart is listed in counterparts.
func (r *Registry) UnarchiveForUser(ctx context.Context, eventID, userID int64, counterparts []int64) (int64, error) {
	return r.setArchived(ctx, eventID, userID, false, counterparts)
}

func (r *Registry) setArchived(ctx context.Context, eventID, userID int64, archived bool, counterparts []int64) (int64, error) {
	action := "unarchive"
	if archived {
		action = "archive"
	}

	var affected int64
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&matchModel{}).
			Where("event_id = ? AND (user_low_id = ? OR user_high_id = ?) AND is_archived = ?", eventID, userID, userID, !archived)
		if !archived {
			q = q.Where("(CASE WHEN user_low_id = ? THEN user_high_id ELSE user_low_id END) IN ?", userID, nonEmpty(counterparts))
		}
		res := q.Update("is_archived", archived)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return r.audit(tx, eventID, userID, action, datatypes.JSONMap{"matches": affected})
	})
	if err != nil {
		return 0, wrapInternal(action+" matches", err)
	}

	r.metrics.membership.WithLabelValues(action).Inc()
	r.log.Info().Int64("event_id", eventID).Int64("user_id", userID).Int64("matches", affected).Msgf("matches %sd", action)
	return affected, nil
}

// nonEmpty keeps an IN clause valid when no id qualifies; ids are positive.
func nonEmpty(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{0}
	}
	return ids
}

// ErasureReport counts rows removed by DeleteForUser.
type ErasureReport struct {
	Messages int64 `json:"messages"`
	Matches  int64 `json:"matches"`
	Swipes   int64 `json:"swipes"`
}

// DeleteForUser permanently removes userID's footprint in eventID: messages
// of their matches, then the matches, then swipes given or received.
func (r *Registry) DeleteForUser(ctx context.Context, eventID, userID int64) (ErasureReport, error) {
	var report ErasureReport
	err := r.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var matchIDs []int64
		if err := tx.Model(&matchModel{}).
			Where("event_id = ? AND (user_low_id = ? OR user_high_id = ?)", eventID, userID, userID).
			Pluck("id", &matchIDs).Error; err != nil {
			return err
		}

		if len(matchIDs) > 0 {
			res := tx.Where("match_id IN ?", matchIDs).Delete(&messageModel{})
			if res.Error != nil {
				return res.Error
			}
			report.Messages = res.RowsAffected

			res = tx.Where("id IN ?", matchIDs).Delete(&matchModel{})
			if res.Error != nil {
				return res.Error
			}
			report.Matches = res.RowsAffected
		}

		res := tx.Where("event_id = ? AND (liker_id = ? OR liked_id = ?)", eventID, userID, userID).Delete(&swipeModel{})
		if res.Error != nil {
			return res.Error
		}
		report.Swipes = res.RowsAffected

		return r.audit(tx, eventID, userID, "erase", datatypes.JSONMap{
			"messages": report.Messages,
			"matches":  report.Matches,
			"swipes":   report.Swipes,
		})
	})
	if err != nil {
		return ErasureReport{}, wrapInternal("erase participant", err)
	}

	r.metrics.membership.WithLabelValues("erase").Inc()
	r.log.Info().Int64("event_id", eventID).Int64("user_id", userID).
		Int64("messages", report.Messages).Int64("matches", report.Matches).Int64("swipes", report.Swipes).
		Msg("participant erased")
	return report, nil
}

func (r *Registry) audit(tx *gorm.DB, eventID, userID int64, action string, details datatypes.JSONMap) error {
	return tx.Create(&auditModel{
		EventID: eventID,
		UserID:  userID,
		Action:  action,
		Details: details,
		At:      r.now(),
	}).Error
}

// asEngineError passes *Error through and wraps anything else as INTERNAL.
func asEngineError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return wrapInternal(op, err)
}
