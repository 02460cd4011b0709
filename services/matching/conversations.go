package matching

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

const (
	MaxMessageLength   = 5000
	DefaultMessagePage = 50
	MaxMessagePage     = 100
)

// Conversations stores the messages of matches.
type Conversations struct {
	orm *gorm.DB
	now func() time.Time
}

func NewConversations(orm *gorm.DB, now func() time.Time) *Conversations {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Conversations{orm: orm, now: now}
}

// normalizeContent trims content and enforces the length bounds.
func normalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", Validation("message content is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", Validation("message exceeds 5000 characters")
	}
	return trimmed, nil
}

// Insert persists a message. Content must already be normalized.
func (c *Conversations) Insert(ctx context.Context, matchID, senderID int64, content string) (Message, error) {
	row := messageModel{
		MatchID:  matchID,
		SenderID: senderID,
		Content:  content,
		SentAt:   c.now(),
	}
	if err := c.orm.WithContext(ctx).Create(&row).Error; err != nil {
		return Message{}, wrapInternal("insert message", err)
	}
	return row.toAPI(), nil
}

// Page returns up to limit messages older than beforeID (0 for the newest),
// oldest first.
func (c *Conversations) Page(ctx context.Context, matchID int64, limit int, beforeID int64) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultMessagePage
	}
	if limit > MaxMessagePage {
		limit = MaxMessagePage
	}

	q := c.orm.WithContext(ctx).Where("match_id = ?", matchID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var rows []messageModel
	if err := q.Order("sent_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapInternal("list messages", err)
	}

	out := make([]Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toAPI())
	}
	slices.Reverse(out)
	return out, nil
}

// MarkAllRead marks every message readerID received in matchID as read.
func (c *Conversations) MarkAllRead(ctx context.Context, matchID, readerID int64) (int64, error) {
	res := c.orm.WithContext(ctx).Model(&messageModel{}).
		Where("match_id = ? AND sender_id <> ? AND is_read = ?", matchID, readerID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, wrapInternal("mark messages read", res.Error)
	}
	return res.RowsAffected, nil
}

func (c *Conversations) Get(ctx context.Context, messageID int64) (Message, error) {
	var row messageModel
	err := c.orm.WithContext(ctx).Where("id = ?", messageID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Message{}, NotFound("message not found")
	case err != nil:
		return Message{}, wrapInternal("get message", err)
	}
	return row.toAPI(), nil
}

func (c *Conversations) MarkRead(ctx context.Context, messageID int64) error {
	err := c.orm.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", messageID).
		Update("is_read", true).Error
	if err != nil {
		return wrapInternal("mark message read", err)
	}
	return nil
}

// ToggleLike flips is_liked in a single statement and returns the new row.
func (c *Conversations) ToggleLike(ctx context.Context, messageID int64) (Message, error) {
	err := c.orm.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", messageID).
		Update("is_liked", gorm.Expr("NOT is_liked")).Error
	if err != nil {
		return Message{}, wrapInternal("toggle message like", err)
	}
	return c.Get(ctx, messageID)
}

// LastMessages returns the most recent message of each match that has one.
func (c *Conversations) LastMessages(ctx context.Context, matchIDs []int64) (map[int64]Message, error) {
	out := make(map[int64]Message, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	// Same ordering as Page: latest sent_at, then highest id.
	var rows []messageModel
	err := c.orm.WithContext(ctx).Table("messages AS m").Select("m.*").
		Where("m.match_id IN ?", matchIDs).
		Where(`NOT EXISTS (SELECT 1 FROM messages n WHERE n.match_id = m.match_id
			AND (n.sent_at > m.sent_at OR (n.sent_at = m.sent_at AND n.id > m.id)))`).
		Find(&rows).Error
	if err != nil {
		return nil, wrapInternal("load last messages", err)
	}
	for _, row := range rows {
		out[row.MatchID] = row.toAPI()
	}
	return out, nil
}

// UnreadCounts counts messages viewerID has not read, per match.
func (c *Conversations) UnreadCounts(ctx context.Context, matchIDs []int64, viewerID int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		MatchID int64
		Unread  int64
	}
	err := c.orm.WithContext(ctx).Model(&messageModel{}).
		Select("match_id, COUNT(*) AS unread").
		Where("match_id IN ? AND sender_id <> ? AND is_read = ?", matchIDs, viewerID, false).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapInternal("count unread messages", err)
	}
	for _, row := range rows {
		out[row.MatchID] = row.Unread
	}
	return out, nil
}
