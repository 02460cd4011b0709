package matching

import "context"

// MembershipGate answers registration and block questions owned by the event
// registration service.
type MembershipGate interface {
	IsRegistered(ctx context.Context, eventID, userID int64) (bool, error)
	IsBlocked(ctx context.Context, eventID, userID int64) (bool, error)
	// BlockedAmong returns the subset of userIDs blocked in eventID.
	BlockedAmong(ctx context.Context, eventID int64, userIDs []int64) (map[int64]bool, error)
	// RegisteredAmong returns the subset of userIDs actively registered in
	// eventID. Removed participants are absent.
	RegisteredAmong(ctx context.Context, eventID int64, userIDs []int64) (map[int64]bool, error)
	// EligibleParticipants lists active, unblocked participants of eventID.
	EligibleParticipants(ctx context.Context, eventID int64) ([]int64, error)
}

// EventCatalog resolves events. Event returns a NOT_FOUND *Error for unknown ids.
type EventCatalog interface {
	Event(ctx context.Context, eventID int64) (Event, error)
	Events(ctx context.Context, eventIDs []int64) (map[int64]Event, error)
}

// ProfileDirectory resolves display profiles, preferring photos uploaded for
// the given event. Unknown users are absent from the result.
type ProfileDirectory interface {
	Summaries(ctx context.Context, eventID int64, userIDs []int64) (map[int64]ProfileSummary, error)
}

// Notifier delivers realtime notifications. Delivery happens after the
// triggering write committed.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
