package matching

import (
	"context"
	"time"
)

// RedactedName replaces the first name of a profile hidden by a block.
const RedactedName = "Utilisateur"

// Mediator derives conversation visibility from current membership and event
// state. Nothing it computes is persisted.
type Mediator struct {
	gate   MembershipGate
	events EventCatalog
	now    func() time.Time
}

func NewMediator(gate MembershipGate, events EventCatalog, now func() time.Time) *Mediator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Mediator{gate: gate, events: events, now: now}
}

// standing is the membership state of both participants as seen by one viewer.
type standing struct {
	viewerBlocked bool
	otherBlocked  bool
	viewerRemoved bool
	otherRemoved  bool
}

func composeVisibility(st standing, expired, archived bool) Visibility {
	v := Visibility{
		IsCurrentUserBlocked: st.viewerBlocked,
		IsOtherUserBlocked:   st.otherBlocked,
		IsCurrentUserRemoved: st.viewerRemoved,
		IsOtherUserRemoved:   st.otherRemoved,
		IsEventExpired:       expired,
		Status:               StatusActive,
	}
	switch {
	case archived || st.viewerBlocked || st.otherBlocked || st.viewerRemoved || st.otherRemoved:
		v.Status = StatusReadOnlyArchive
	case expired:
		v.Status = StatusReadOnlyExpired
	}
	return v
}

// Redacted reports whether the counterpart profile must be masked.
func (v Visibility) Redacted() bool {
	return v.IsCurrentUserBlocked || v.IsOtherUserBlocked
}

// membership loads block and registration state of userIDs in eventID.
func (md *Mediator) membership(ctx context.Context, eventID int64, userIDs []int64) (blocked, registered map[int64]bool, err error) {
	blocked, err = md.gate.BlockedAmong(ctx, eventID, userIDs)
	if err != nil {
		return nil, nil, wrapInternal("check blocks", err)
	}
	registered, err = md.gate.RegisteredAmong(ctx, eventID, userIDs)
	if err != nil {
		return nil, nil, wrapInternal("check registrations", err)
	}
	return blocked, registered, nil
}

func standingOf(blocked, registered map[int64]bool, viewerID, otherID int64) standing {
	return standing{
		viewerBlocked: blocked[viewerID],
		otherBlocked:  blocked[otherID],
		viewerRemoved: !registered[viewerID],
		otherRemoved:  !registered[otherID],
	}
}

// View computes visibility of m for viewerID.
func (md *Mediator) View(ctx context.Context, m Match, viewerID int64) (Visibility, Event, error) {
	event, err := md.events.Event(ctx, m.EventID)
	if err != nil {
		return Visibility{}, Event{}, err
	}
	otherID := m.OtherUser(viewerID)
	blocked, registered, err := md.membership(ctx, m.EventID, []int64{viewerID, otherID})
	if err != nil {
		return Visibility{}, Event{}, err
	}
	v := composeVisibility(standingOf(blocked, registered, viewerID, otherID), event.Expired(md.now()), m.IsArchived)
	return v, event, nil
}

// Views computes visibility for many matches of one viewer. Membership state
// is fetched once per distinct event.
func (md *Mediator) Views(ctx context.Context, matches []Match, viewerID int64) (map[int64]Visibility, map[int64]Event, error) {
	others := make(map[int64][]int64)
	var eventIDs []int64
	for _, m := range matches {
		if _, seen := others[m.EventID]; !seen {
			eventIDs = append(eventIDs, m.EventID)
			others[m.EventID] = []int64{viewerID}
		}
		others[m.EventID] = append(others[m.EventID], m.OtherUser(viewerID))
	}

	events, err := md.events.Events(ctx, eventIDs)
	if err != nil {
		return nil, nil, err
	}

	blockedByEvent := make(map[int64]map[int64]bool, len(eventIDs))
	registeredByEvent := make(map[int64]map[int64]bool, len(eventIDs))
	for _, eventID := range eventIDs {
		blocked, registered, err := md.membership(ctx, eventID, others[eventID])
		if err != nil {
			return nil, nil, err
		}
		blockedByEvent[eventID] = blocked
		registeredByEvent[eventID] = registered
	}

	now := md.now()
	views := make(map[int64]Visibility, len(matches))
	for _, m := range matches {
		st := standingOf(blockedByEvent[m.EventID], registeredByEvent[m.EventID], viewerID, m.OtherUser(viewerID))
		views[m.ID] = composeVisibility(st, events[m.EventID].Expired(now), m.IsArchived)
	}
	return views, events, nil
}

// RedactProfile returns the placeholder shown in place of a blocked profile.
func RedactProfile(userID int64) ProfileSummary {
	return ProfileSummary{ID: userID, Firstname: RedactedName, Photos: []Photo{}}
}

// counterpart picks the profile to display for otherID under v. A profile
// that could not be loaded is reduced to its id, never to the block
// placeholder.
func counterpart(profiles map[int64]ProfileSummary, otherID int64, v Visibility) ProfileSummary {
	if v.Redacted() {
		return RedactProfile(otherID)
	}
	p, ok := profiles[otherID]
	if !ok {
		return ProfileSummary{ID: otherID, Photos: []Photo{}}
	}
	if p.Photos == nil {
		p.Photos = []Photo{}
	}
	return p
}
