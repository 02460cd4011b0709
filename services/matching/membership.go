package matching

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Membership subjects carry {event_id, user_id} from the registration service.
const (
	MembershipBlockedSubject     = "eventmatch.membership.blocked"
	MembershipUnblockedSubject   = "eventmatch.membership.unblocked"
	MembershipRemovedSubject     = "eventmatch.membership.removed"
	MembershipReactivatedSubject = "eventmatch.membership.reactivated"
	MembershipErasedSubject      = "eventmatch.membership.erased"
)

// Subscriber is the slice of the message bus the listener needs.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// MembershipChange is the payload of every membership subject.
type MembershipChange struct {
	EventID int64 `json:"event_id"`
	UserID  int64 `json:"user_id"`
}

// MembershipListener applies archival and erasure when participants are
// blocked, removed, restored or deleted elsewhere.
type MembershipListener struct {
	engine *Engine
	sub    Subscriber
	log    zerolog.Logger

	subsMu sync.Mutex
	subs   []io.Closer
}

func NewMembershipListener(engine *Engine, sub Subscriber, log zerolog.Logger) (*MembershipListener, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if sub == nil {
		return nil, errors.New("subscriber is required")
	}
	return &MembershipListener{engine: engine, sub: sub, log: log}, nil
}

// Start registers one durable consumer per subject.
func (l *MembershipListener) Start(ctx context.Context) error {
	consumers := []struct {
		subject string
		durable string
		handler func(context.Context, MembershipChange) error
	}{
		{MembershipBlockedSubject, "matching-blocked", l.archive},
		{MembershipRemovedSubject, "matching-removed", l.archive},
		{MembershipUnblockedSubject, "matching-unblocked", l.unarchive},
		{MembershipReactivatedSubject, "matching-reactivated", l.unarchive},
		{MembershipErasedSubject, "matching-erased", l.erase},
	}

	for _, c := range consumers {
		closer, err := l.sub.Subscribe(ctx, c.subject, c.durable, decodeChange(c.subject, c.handler, l.log))
		if err != nil {
			_ = l.Close()
			return err
		}
		l.subsMu.Lock()
		l.subs = append(l.subs, closer)
		l.subsMu.Unlock()
	}
	return nil
}

// Close tears down active subscriptions.
func (l *MembershipListener) Close() error {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	var firstErr error
	for _, sub := range l.subs {
		if sub == nil {
			continue
		}
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.subs = nil
	return firstErr
}

func decodeChange(subject string, fn func(context.Context, MembershipChange) error, log zerolog.Logger) func(context.Context, []byte) error {
	return func(ctx context.Context, data []byte) error {
		var change MembershipChange
		if err := json.Unmarshal(data, &change); err != nil {
			// Redelivering a malformed payload cannot succeed.
			log.Error().Err(err).Str("subject", subject).Msg("drop malformed membership event")
			return nil
		}
		if change.EventID <= 0 || change.UserID <= 0 {
			log.Error().Str("subject", subject).Msg("drop membership event without event_id or user_id")
			return nil
		}
		return fn(ctx, change)
	}
}

func (l *MembershipListener) archive(ctx context.Context, c MembershipChange) error {
	_, err := l.engine.ArchiveForUser(ctx, c.EventID, c.UserID)
	return err
}

func (l *MembershipListener) unarchive(ctx context.Context, c MembershipChange) error {
	_, err := l.engine.UnarchiveForUser(ctx, c.EventID, c.UserID)
	return err
}

func (l *MembershipListener) erase(ctx context.Context, c MembershipChange) error {
	_, err := l.engine.DeleteForUser(ctx, c.EventID, c.UserID)
	return err
}
