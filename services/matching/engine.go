// Package matching implements event-scoped swipes, mutual matches,
// conversations and the visibility rules that blocks and event expiry impose
// on them.
package matching

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Options wires an Engine. ORM, Gate, Events and Profiles are required.
type Options struct {
	ORM      *gorm.DB
	Gate     MembershipGate
	Events   EventCatalog
	Profiles ProfileDirectory
	Notifier Notifier
	Logger   zerolog.Logger
	Metrics  *Metrics
	Clock    func() time.Time
}

// Engine is the service layer: it checks membership and event state, then
// delegates to the ledger, registry and conversation store.
type Engine struct {
	ledger        *Ledger
	registry      *Registry
	conversations *Conversations
	mediator      *Mediator

	gate     MembershipGate
	events   EventCatalog
	profiles ProfileDirectory
	notifier Notifier
	log      zerolog.Logger
	metrics  *Metrics
	now      func() time.Time
}

func New(opts Options) (*Engine, error) {
	if opts.ORM == nil {
		return nil, errors.New("orm is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("membership gate is required")
	}
	if opts.Events == nil {
		return nil, errors.New("event catalog is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile directory is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	ledger := NewLedger(opts.ORM, opts.Clock)
	return &Engine{
		ledger:        ledger,
		registry:      NewRegistry(opts.ORM, ledger, opts.Logger, opts.Metrics),
		conversations: NewConversations(opts.ORM, opts.Clock),
		mediator:      NewMediator(opts.Gate, opts.Events, opts.Clock),
		gate:          opts.Gate,
		events:        opts.Events,
		profiles:      opts.Profiles,
		notifier:      opts.Notifier,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Clock,
	}, nil
}

func (e *Engine) Ledger() *Ledger       { return e.ledger }
func (e *Engine) Registry() *Registry   { return e.registry }
func (e *Engine) Store() *Conversations { return e.conversations }

// openWindow loads the event and rejects swipes outside its window.
func (e *Engine) openWindow(ctx context.Context, eventID int64) (Event, error) {
	event, err := e.events.Event(ctx, eventID)
	if err != nil {
		return Event{}, asEngineError("load event", err)
	}
	now := e.now()
	if event.NotStarted(now) {
		return Event{}, ErrEventNotStarted
	}
	if event.Expired(now) {
		return Event{}, ErrEventExpired
	}
	return event, nil
}

// checkSwiper enforces that userID may act in eventID.
func (e *Engine) checkSwiper(ctx context.Context, eventID, userID int64) error {
	registered, err := e.gate.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return wrapInternal("check registration", err)
	}
	if !registered {
		return Forbidden("not registered for this event")
	}
	blocked, err := e.gate.IsBlocked(ctx, eventID, userID)
	if err != nil {
		return wrapInternal("check block", err)
	}
	if blocked {
		return userBlocked("you are blocked in this event")
	}
	return nil
}

func (e *Engine) checkSwipe(ctx context.Context, eventID, likerID, likedID int64) error {
	if likedID <= 0 {
		return Validation("user_id is required")
	}
	if likerID == likedID {
		return Validation("cannot swipe on yourself")
	}
	if _, err := e.openWindow(ctx, eventID); err != nil {
		return err
	}
	if err := e.checkSwiper(ctx, eventID, likerID); err != nil {
		return err
	}

	registered, err := e.gate.IsRegistered(ctx, eventID, likedID)
	if err != nil {
		return wrapInternal("check registration", err)
	}
	blocked, err := e.gate.IsBlocked(ctx, eventID, likedID)
	if err != nil {
		return wrapInternal("check block", err)
	}
	if !registered || blocked {
		return Forbidden("user is not available in this event")
	}
	return nil
}

// Like records likerID's like on likedID and reports whether it completed a
// mutual match. Only the request whose insert created the match notifies.
func (e *Engine) Like(ctx context.Context, eventID, likerID, likedID int64) (LikeResult, error) {
	if err := e.checkSwipe(ctx, eventID, likerID, likedID); err != nil {
		return LikeResult{}, err
	}

	out, err := e.registry.LikeAndMaybeMatch(ctx, eventID, likerID, likedID)
	if err != nil {
		return LikeResult{}, err
	}
	if out.Match == nil {
		return LikeResult{Matched: false}, nil
	}

	m := *out.Match
	if out.Created {
		e.notifyMatchCreated(ctx, m)
	}

	profiles, err := e.profiles.Summaries(ctx, eventID, []int64{likedID})
	if err != nil {
		return LikeResult{}, wrapInternal("load profile", err)
	}
	view := e.matchView(m, likerID, profiles, Visibility{})
	return LikeResult{Matched: true, Match: &view}, nil
}

// Pass records likerID's pass on likedID.
func (e *Engine) Pass(ctx context.Context, eventID, likerID, likedID int64) (Swipe, error) {
	if err := e.checkSwipe(ctx, eventID, likerID, likedID); err != nil {
		return Swipe{}, err
	}

	swiped, err := e.ledger.HasSwiped(ctx, eventID, likerID, likedID)
	if err != nil {
		return Swipe{}, err
	}
	if swiped {
		return Swipe{}, Conflict("user already evaluated in this event")
	}

	s, err := e.ledger.RecordSwipe(ctx, eventID, likerID, likedID, false)
	if err != nil {
		return Swipe{}, err
	}
	e.metrics.swipes.WithLabelValues("pass").Inc()
	return s, nil
}

func (e *Engine) matchView(m Match, viewerID int64, profiles map[int64]ProfileSummary, v Visibility) MatchView {
	return MatchView{
		ID:         m.ID,
		EventID:    m.EventID,
		User:       counterpart(profiles, m.OtherUser(viewerID), v),
		IsArchived: m.IsArchived,
		CreatedAt:  m.CreatedAt,
	}
}

// profilesByEvent resolves counterpart profiles with one directory call per event.
func (e *Engine) profilesByEvent(ctx context.Context, matches []Match, viewerID int64) (map[int64]map[int64]ProfileSummary, error) {
	ids := make(map[int64][]int64)
	for _, m := range matches {
		ids[m.EventID] = append(ids[m.EventID], m.OtherUser(viewerID))
	}
	out := make(map[int64]map[int64]ProfileSummary, len(ids))
	for eventID, userIDs := range ids {
		profiles, err := e.profiles.Summaries(ctx, eventID, userIDs)
		if err != nil {
			return nil, wrapInternal("load profiles", err)
		}
		out[eventID] = profiles
	}
	return out, nil
}

// Matches lists userID's matches grouped by event. Groups follow the order of
// their newest match.
func (e *Engine) Matches(ctx context.Context, userID int64, eventID *int64) ([]EventMatches, error) {
	matches, err := e.registry.ForUser(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	views, events, err := e.mediator.Views(ctx, matches, userID)
	if err != nil {
		return nil, asEngineError("compute visibility", err)
	}
	profiles, err := e.profilesByEvent(ctx, matches, userID)
	if err != nil {
		return nil, err
	}

	groups := make([]EventMatches, 0)
	index := make(map[int64]int)
	for _, m := range matches {
		i, ok := index[m.EventID]
		if !ok {
			i = len(groups)
			index[m.EventID] = i
			groups = append(groups, EventMatches{
				EventID:   m.EventID,
				EventName: events[m.EventID].Name,
				Matches:   []MatchView{},
			})
		}
		groups[i].Matches = append(groups[i].Matches, e.matchView(m, userID, profiles[m.EventID], views[m.ID]))
	}
	return groups, nil
}

// Conversations lists userID's conversations, most recent activity first.
func (e *Engine) Conversations(ctx context.Context, userID int64, eventID *int64) ([]ConversationSummary, error) {
	matches, err := e.registry.ForUser(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	views, _, err := e.mediator.Views(ctx, matches, userID)
	if err != nil {
		return nil, asEngineError("compute visibility", err)
	}
	profiles, err := e.profilesByEvent(ctx, matches, userID)
	if err != nil {
		return nil, err
	}

	matchIDs := make([]int64, 0, len(matches))
	for _, m := range matches {
		matchIDs = append(matchIDs, m.ID)
	}
	last, err := e.conversations.LastMessages(ctx, matchIDs)
	if err != nil {
		return nil, err
	}
	unread, err := e.conversations.UnreadCounts(ctx, matchIDs, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(matches))
	for _, m := range matches {
		v := views[m.ID]
		summary := ConversationSummary{
			MatchID:     m.ID,
			EventID:     m.EventID,
			User:        counterpart(profiles[m.EventID], m.OtherUser(userID), v),
			UnreadCount: unread[m.ID],
			IsArchived:  m.IsArchived,
			Visibility:  v,
			CreatedAt:   m.CreatedAt,
		}
		if msg, ok := last[m.ID]; ok {
			summary.LastMessage = &msg
		}
		out = append(out, summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].lastActivity().After(out[j].lastActivity())
	})
	return out, nil
}

// MatchFor returns matchID when userID participates in it.
func (e *Engine) MatchFor(ctx context.Context, matchID, userID int64) (Match, error) {
	m, err := e.registry.Get(ctx, matchID)
	if err != nil {
		return Match{}, err
	}
	if !m.HasUser(userID) {
		return Match{}, Forbidden("not a participant of this match")
	}
	return m, nil
}

// SendMessage appends a message to an active conversation.
func (e *Engine) SendMessage(ctx context.Context, matchID, senderID int64, content string) (Message, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return Message{}, err
	}
	m, err := e.MatchFor(ctx, matchID, senderID)
	if err != nil {
		return Message{}, err
	}

	v, _, err := e.mediator.View(ctx, m, senderID)
	if err != nil {
		return Message{}, asEngineError("compute visibility", err)
	}
	switch {
	case v.IsCurrentUserBlocked:
		return Message{}, userBlocked("you are blocked in this event")
	case v.IsOtherUserBlocked:
		return Message{}, userBlocked("this user is no longer available")
	case v.IsCurrentUserRemoved:
		return Message{}, Forbidden("not registered for this event")
	case v.IsOtherUserRemoved, m.IsArchived:
		return Message{}, ErrMatchArchived
	case v.IsEventExpired:
		return Message{}, ErrEventExpired
	}

	msg, err := e.conversations.Insert(ctx, m.ID, senderID, content)
	if err != nil {
		return Message{}, err
	}
	e.metrics.messages.Inc()
	e.notifyMessage(ctx, m, msg)
	return msg, nil
}

// Messages returns one page of a conversation and marks what userID received
// as read. The page reflects read state from before the call.
func (e *Engine) Messages(ctx context.Context, matchID, userID int64, limit int, beforeID int64) (Thread, error) {
	m, err := e.MatchFor(ctx, matchID, userID)
	if err != nil {
		return Thread{}, err
	}

	page, err := e.conversations.Page(ctx, m.ID, limit, beforeID)
	if err != nil {
		return Thread{}, err
	}
	if _, err := e.conversations.MarkAllRead(ctx, m.ID, userID); err != nil {
		return Thread{}, err
	}

	v, _, err := e.mediator.View(ctx, m, userID)
	if err != nil {
		return Thread{}, asEngineError("compute visibility", err)
	}
	var profiles map[int64]ProfileSummary
	if !v.Redacted() {
		profiles, err = e.profiles.Summaries(ctx, m.EventID, []int64{m.OtherUser(userID)})
		if err != nil {
			return Thread{}, wrapInternal("load profile", err)
		}
	}
	return Thread{
		Match:    e.matchView(m, userID, profiles, v),
		Messages: page,
		View:     v,
	}, nil
}

// messageFor loads a message and the match it belongs to, requiring userID to
// participate.
func (e *Engine) messageFor(ctx context.Context, messageID, userID int64) (Message, Match, error) {
	msg, err := e.conversations.Get(ctx, messageID)
	if err != nil {
		return Message{}, Match{}, err
	}
	m, err := e.MatchFor(ctx, msg.MatchID, userID)
	if err != nil {
		return Message{}, Match{}, err
	}
	return msg, m, nil
}

// MarkMessageAsRead lets the recipient acknowledge a message. Repeating it is
// a no-op; the sender is refused.
func (e *Engine) MarkMessageAsRead(ctx context.Context, messageID, userID int64) (Message, error) {
	msg, _, err := e.messageFor(ctx, messageID, userID)
	if err != nil {
		return Message{}, err
	}
	if msg.SenderID == userID {
		return Message{}, Forbidden("cannot mark your own message as read")
	}
	if msg.IsRead {
		return msg, nil
	}
	if err := e.conversations.MarkRead(ctx, messageID); err != nil {
		return Message{}, err
	}
	msg.IsRead = true
	return msg, nil
}

// ToggleLike flips the reaction on a message for either participant.
func (e *Engine) ToggleLike(ctx context.Context, messageID, userID int64) (Message, error) {
	if _, _, err := e.messageFor(ctx, messageID, userID); err != nil {
		return Message{}, err
	}
	return e.conversations.ToggleLike(ctx, messageID)
}

func (e *Engine) ArchiveForUser(ctx context.Context, eventID, userID int64) (int64, error) {
	return e.registry.ArchiveForUser(ctx, eventID, userID)
}

// UnarchiveForUser reopens userID's matches in eventID whose counterpart is
// still an active, unblocked participant. The others stay archived.
func (e *Engine) UnarchiveForUser(ctx context.Context, eventID, userID int64) (int64, error) {
	eligible, err := e.gate.EligibleParticipants(ctx, eventID)
	if err != nil {
		return 0, wrapInternal("list participants", err)
	}
	return e.registry.UnarchiveForUser(ctx, eventID, userID, eligible)
}

func (e *Engine) DeleteForUser(ctx context.Context, eventID, userID int64) (ErasureReport, error) {
	return e.registry.DeleteForUser(ctx, eventID, userID)
}
