package matching

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Ledger is the append-only record of like and pass decisions.
type Ledger struct {
	orm *gorm.DB
	now func() time.Time
}

func NewLedger(orm *gorm.DB, now func() time.Time) *Ledger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{orm: orm, now: now}
}

// in binds the ledger to an open transaction.
func (l *Ledger) in(tx *gorm.DB) *Ledger {
	return &Ledger{orm: tx, now: l.now}
}

// RecordSwipe appends a decision. A second decision on the same ordered pair
// in the same event fails with CONFLICT whatever isLike says.
func (l *Ledger) RecordSwipe(ctx context.Context, eventID, likerID, likedID int64, isLike bool) (Swipe, error) {
	if likerID == likedID {
		return Swipe{}, Validation("cannot swipe on yourself")
	}

	row := swipeModel{
		EventID:   eventID,
		LikerID:   likerID,
		LikedID:   likedID,
		IsLike:    isLike,
		CreatedAt: l.now(),
	}
	if err := l.orm.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return Swipe{}, Conflict("user already evaluated in this event")
		}
		return Swipe{}, wrapInternal("record swipe", err)
	}
	return row.toAPI(), nil
}

func (l *Ledger) HasSwiped(ctx context.Context, eventID, likerID, likedID int64) (bool, error) {
	var count int64
	err := l.orm.WithContext(ctx).Model(&swipeModel{}).
		Where("event_id = ? AND liker_id = ? AND liked_id = ?", eventID, likerID, likedID).
		Count(&count).Error
	if err != nil {
		return false, wrapInternal("check swipe", err)
	}
	return count > 0, nil
}

// FindReciprocal returns the like likedID gave likerID, or nil.
func (l *Ledger) FindReciprocal(ctx context.Context, eventID, likerID, likedID int64) (*Swipe, error) {
	var row swipeModel
	err := l.orm.WithContext(ctx).
		Where("event_id = ? AND liker_id = ? AND liked_id = ? AND is_like = ?", eventID, likedID, likerID, true).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, wrapInternal("find reciprocal swipe", err)
	}
	s := row.toAPI()
	return &s, nil
}

// Evaluated lists every user likerID already swiped on in eventID.
func (l *Ledger) Evaluated(ctx context.Context, eventID, likerID int64) ([]int64, error) {
	var ids []int64
	err := l.orm.WithContext(ctx).Model(&swipeModel{}).
		Where("event_id = ? AND liker_id = ?", eventID, likerID).
		Pluck("liked_id", &ids).Error
	if err != nil {
		return nil, wrapInternal("list swipes", err)
	}
	return ids, nil
}

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
