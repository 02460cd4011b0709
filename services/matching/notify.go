package matching

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind names a realtime notification as clients receive it.
type Kind string

const (
	KindMatchCreated        Kind = "match:created"
	KindMessageCreated      Kind = "message:created"
	KindConversationUpdated Kind = "conversation:updated"
)

// RealtimeSubjectPrefix prefixes bus subjects carrying notifications.
const RealtimeSubjectPrefix = "eventmatch.realtime."

// Notification is addressed to a single room.
type Notification struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Room    string    `json:"room"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Subject returns the bus subject for a notification kind.
func (k Kind) Subject() string {
	return RealtimeSubjectPrefix + strings.ReplaceAll(string(k), ":", "_")
}

// ConversationUpdate is sent to the recipient of a new message.
type ConversationUpdate struct {
	MatchID     int64   `json:"match_id"`
	EventID     int64   `json:"event_id"`
	LastMessage Message `json:"last_message"`
	UnreadCount int64   `json:"unread_count"`
}

// Publisher is the slice of the message bus the engine needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

type busNotifier struct {
	pub Publisher
}

// NewBusNotifier publishes notifications for an out-of-process gateway.
func NewBusNotifier(pub Publisher) Notifier {
	return busNotifier{pub: pub}
}

func (b busNotifier) Notify(ctx context.Context, n Notification) error {
	return b.pub.Publish(ctx, n.Kind.Subject(), n)
}

type discard struct{}

func (discard) Notify(context.Context, Notification) error { return nil }

func (e *Engine) notify(ctx context.Context, kind Kind, room string, payload any) {
	n := Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Room:    room,
		Payload: payload,
		At:      e.now(),
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.metrics.notifyFailures.WithLabelValues(string(kind)).Inc()
		e.log.Warn().Err(err).Str("kind", string(kind)).Str("room", room).Msg("notification not delivered")
	}
}

func (e *Engine) notifyMatchCreated(ctx context.Context, m Match) {
	profiles, err := e.profiles.Summaries(ctx, m.EventID, []int64{m.UserLowID, m.UserHighID})
	if err != nil {
		e.log.Warn().Err(err).Int64("match_id", m.ID).Msg("load profiles for match notification")
	}
	for _, userID := range []int64{m.UserLowID, m.UserHighID} {
		e.notify(ctx, KindMatchCreated, UserRoom(userID), e.matchView(m, userID, profiles, Visibility{}))
	}
}

func (e *Engine) notifyMessage(ctx context.Context, m Match, msg Message) {
	e.notify(ctx, KindMessageCreated, MatchRoom(m.ID), msg)

	recipient := m.OtherUser(msg.SenderID)
	update := ConversationUpdate{MatchID: m.ID, EventID: m.EventID, LastMessage: msg}
	counts, err := e.conversations.UnreadCounts(ctx, []int64{m.ID}, recipient)
	if err != nil {
		e.log.Warn().Err(err).Int64("match_id", m.ID).Msg("count unread for conversation update")
	} else {
		update.UnreadCount = counts[m.ID]
	}
	e.notify(ctx, KindConversationUpdated, UserRoom(recipient), update)
}

// MessageID lets the bus deduplicate a retried publish.
func (n Notification) MessageID() string { return n.ID }
