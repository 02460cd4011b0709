package matching

import (
	"strconv"
	"time"
)

// Swipe is one like or pass decision recorded in the ledger.
type Swipe struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	LikerID   int64     `json:"liker_id"`
	LikedID   int64     `json:"liked_id"`
	IsLike    bool      `json:"is_like"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is the canonical record of a mutual like. UserLowID is always the
// smaller of the two participant ids.
type Match struct {
	ID         int64     `json:"id"`
	EventID    int64     `json:"event_id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
}

// HasUser reports whether userID is one of the two participants.
func (m Match) HasUser(userID int64) bool {
	return m.UserLowID == userID || m.UserHighID == userID
}

// OtherUser returns the counterpart of userID. The result is meaningless when
// userID is not a participant.
func (m Match) OtherUser(userID int64) int64 {
	if m.UserLowID == userID {
		return m.UserHighID
	}
	return m.UserLowID
}

// Message belongs to exactly one match.
type Message struct {
	ID       int64     `json:"id"`
	MatchID  int64     `json:"match_id"`
	SenderID int64     `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
	IsRead   bool      `json:"is_read"`
	IsLiked  bool      `json:"is_liked"`
}

// Event carries the application window the engine enforces. A nil bound is
// open on that side.
type Event struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	AppStartAt *time.Time `json:"app_start_at,omitempty"`
	AppEndAt   *time.Time `json:"app_end_at,omitempty"`
}

// Expired reports whether the application window closed before now.
func (e Event) Expired(now time.Time) bool {
	return e.AppEndAt != nil && now.After(*e.AppEndAt)
}

// NotStarted reports whether the application window opens after now.
func (e Event) NotStarted(now time.Time) bool {
	return e.AppStartAt != nil && now.Before(*e.AppStartAt)
}

type Photo struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

// ProfileSummary is the display form of a user supplied by the profile directory.
type ProfileSummary struct {
	ID        int64   `json:"id"`
	Firstname string  `json:"firstname"`
	Lastname  string  `json:"lastname"`
	Photos    []Photo `json:"photos"`
}

// LikeResult is returned by a like. Match is set only when Matched is true.
type LikeResult struct {
	Matched bool       `json:"matched"`
	Match   *MatchView `json:"match,omitempty"`
}

// MatchView is a match as seen by one of its participants.
type MatchView struct {
	ID         int64          `json:"id"`
	EventID    int64          `json:"event_id"`
	User       ProfileSummary `json:"user"`
	IsArchived bool           `json:"is_archived"`
	CreatedAt  time.Time      `json:"created_at"`
}

// EventMatches groups the matches of one event.
type EventMatches struct {
	EventID   int64       `json:"event_id"`
	EventName string      `json:"event_name"`
	Matches   []MatchView `json:"matches"`
}

// Status is the derived write state of a conversation.
type Status string

const (
	StatusActive          Status = "active"
	StatusReadOnlyExpired Status = "read_only_expired"
	StatusReadOnlyArchive Status = "read_only_archived"
)

// Visibility holds the flags computed for one viewer of one conversation.
type Visibility struct {
	IsCurrentUserBlocked bool   `json:"is_current_user_blocked"`
	IsOtherUserBlocked   bool   `json:"is_other_user_blocked"`
	IsCurrentUserRemoved bool   `json:"is_current_user_removed"`
	IsOtherUserRemoved   bool   `json:"is_other_user_removed"`
	IsEventExpired       bool   `json:"is_event_expired"`
	Status               Status `json:"status"`
}

// ConversationSummary is one row of a conversation list.
type ConversationSummary struct {
	MatchID     int64          `json:"match_id"`
	EventID     int64          `json:"event_id"`
	User        ProfileSummary `json:"user"`
	LastMessage *Message       `json:"last_message"`
	UnreadCount int64          `json:"unread_count"`
	IsArchived  bool           `json:"is_archived"`
	Visibility
	CreatedAt time.Time `json:"created_at"`
}

func (c ConversationSummary) lastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.SentAt
	}
	return c.CreatedAt
}

// Thread is one page of a conversation with its visibility context.
type Thread struct {
	Match    MatchView  `json:"match"`
	Messages []Message  `json:"messages"`
	View     Visibility `json:"visibility"`
}

// MatchRoom names the realtime room shared by both participants of a match.
func MatchRoom(matchID int64) string {
	return "match:" + strconv.FormatInt(matchID, 10)
}

// UserRoom names the private realtime room of one user.
func UserRoom(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
