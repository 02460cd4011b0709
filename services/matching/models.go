package matching

import (
	"time"

	"gorm.io/datatypes"
)

type swipeModel struct {
	ID        int64 `gorm:"primaryKey"`
	EventID   int64
	LikerID   int64
	LikedID   int64
	IsLike    bool
	CreatedAt time.Time
}

func (swipeModel) TableName() string { return "swipes" }

func (m swipeModel) toAPI() Swipe {
	return Swipe{
		ID:        m.ID,
		EventID:   m.EventID,
		LikerID:   m.LikerID,
		LikedID:   m.LikedID,
		IsLike:    m.IsLike,
		CreatedAt: m.CreatedAt,
	}
}

type matchModel struct {
	ID         int64 `gorm:"primaryKey"`
	EventID    int64
	UserLowID  int64
	UserHighID int64
	IsArchived bool
	CreatedAt  time.Time
}

func (matchModel) TableName() string { return "matches" }

func (m matchModel) toAPI() Match {
	return Match{
		ID:         m.ID,
		EventID:    m.EventID,
		UserLowID:  m.UserLowID,
		UserHighID: m.UserHighID,
		IsArchived: m.IsArchived,
		CreatedAt:  m.CreatedAt,
	}
}

type messageModel struct {
	ID       int64 `gorm:"primaryKey"`
	MatchID  int64
	SenderID int64
	Content  string
	SentAt   time.Time
	IsRead   bool
	IsLiked  bool
}

func (messageModel) TableName() string { return "messages" }

func (m messageModel) toAPI() Message {
	return Message{
		ID:       m.ID,
		MatchID:  m.MatchID,
		SenderID: m.SenderID,
		Content:  m.Content,
		SentAt:   m.SentAt,
		IsRead:   m.IsRead,
		IsLiked:  m.IsLiked,
	}
}

type auditModel struct {
	ID      int64 `gorm:"primaryKey"`
	EventID int64
	UserID  int64
	Action  string
	Details datatypes.JSONMap
	At      time.Time
}

func (auditModel) TableName() string { return "match_audit" }
