package matching

import (
	"context"
	"testing"
	"time"
)

func TestComposeVisibility(t *testing.T) {
	tests := []struct {
		name    string
		st      standing
		expired bool
		arch    bool
		want    Status
	}{
		{name: "active", want: StatusActive},
		{name: "expired", expired: true, want: StatusReadOnlyExpired},
		{name: "archived", arch: true, want: StatusReadOnlyArchive},
		{name: "viewer blocked", st: standing{viewerBlocked: true}, want: StatusReadOnlyArchive},
		{name: "other blocked and expired", st: standing{otherBlocked: true}, expired: true, want: StatusReadOnlyArchive},
		{name: "viewer removed", st: standing{viewerRemoved: true}, want: StatusReadOnlyArchive},
		{name: "other removed and expired", st: standing{otherRemoved: true}, expired: true, want: StatusReadOnlyArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := composeVisibility(tt.st, tt.expired, tt.arch)
			if got.Status != tt.want {
				t.Fatalf("status = %s, want %s", got.Status, tt.want)
			}
			if got.Redacted() != (tt.st.viewerBlocked || tt.st.otherBlocked) {
				t.Fatalf("Redacted() = %v", got.Redacted())
			}
			if got.IsCurrentUserRemoved != tt.st.viewerRemoved || got.IsOtherUserRemoved != tt.st.otherRemoved {
				t.Fatalf("removed flags = %v/%v", got.IsCurrentUserRemoved, got.IsOtherUserRemoved)
			}
		})
	}
}

func TestRedactionIsReversible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.match(t, 10, 1, 2)
	if _, err := f.engine.SendMessage(ctx, m.ID, 2, "hello"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	f.gate.setBlocked(10, 2, true)

	convs, err := f.engine.Conversations(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("Conversations() len = %d, want 1", len(convs))
	}
	got := convs[0]
	if got.User.Firstname != RedactedName || got.User.Lastname != "" || len(got.User.Photos) != 0 {
		t.Fatalf("blocked counterpart = %+v, want placeholder", got.User)
	}
	if !got.IsOtherUserBlocked || got.IsCurrentUserBlocked {
		t.Fatalf("visibility = %+v", got.Visibility)
	}
	if got.LastMessage == nil || got.LastMessage.Content != "hello" {
		t.Fatalf("last message = %+v, want untouched content", got.LastMessage)
	}

	blockedView, err := f.engine.Conversations(ctx, 2, nil)
	if err != nil {
		t.Fatalf("Conversations(blocked user) error = %v", err)
	}
	if !blockedView[0].IsCurrentUserBlocked || blockedView[0].User.Firstname != RedactedName {
		t.Fatalf("blocked user's view = %+v", blockedView[0])
	}

	f.gate.setBlocked(10, 2, false)

	thread, err := f.engine.Messages(ctx, m.ID, 1, 0, 0)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if thread.Match.User.Firstname != "user2" || len(thread.Match.User.Photos) != 1 {
		t.Fatalf("unblocked counterpart = %+v, want real profile", thread.Match.User)
	}
	if thread.View.Status != StatusActive {
		t.Fatalf("status = %s, want active", thread.View.Status)
	}
	if thread.Messages[0].Content != "hello" {
		t.Fatalf("content = %q", thread.Messages[0].Content)
	}
}

func TestConversationListChecksBlocksPerEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := baseTime.Add(time.Hour)
	f.catalog.put(Event{ID: 20, Name: "Summer Mixer", AppEndAt: &end})
	f.gate.register(20, 1, 5)

	f.match(t, 10, 1, 2)
	f.match(t, 10, 1, 3)
	f.match(t, 10, 1, 4)
	m20 := f.match(t, 20, 5, 1)

	f.gate.mu.Lock()
	f.gate.blockCalls = 0
	f.gate.mu.Unlock()

	convs, err := f.engine.Conversations(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(convs) != 4 {
		t.Fatalf("Conversations() len = %d, want 4", len(convs))
	}
	if f.gate.blockCalls != 2 {
		t.Fatalf("block lookups = %d, want one per event", f.gate.blockCalls)
	}
	if convs[0].MatchID != m20.ID {
		t.Fatalf("first conversation = %d, want most recent match %d", convs[0].MatchID, m20.ID)
	}

	only20 := int64(20)
	scoped, err := f.engine.Conversations(ctx, 1, &only20)
	if err != nil || len(scoped) != 1 || scoped[0].EventID != 20 {
		t.Fatalf("Conversations(event 20) = %+v, %v", scoped, err)
	}
}

func TestConversationSummaryCountsUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m12 := f.match(t, 10, 1, 2)
	m13 := f.match(t, 10, 1, 3)

	for _, c := range []struct {
		match  Match
		sender int64
		text   string
	}{{m12, 2, "a"}, {m12, 2, "b"}, {m12, 1, "c"}, {m13, 3, "d"}} {
		if _, err := f.engine.SendMessage(ctx, c.match.ID, c.sender, c.text); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
	}

	convs, err := f.engine.Conversations(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	byMatch := make(map[int64]ConversationSummary)
	for _, c := range convs {
		byMatch[c.MatchID] = c
	}
	if got := byMatch[m12.ID]; got.UnreadCount != 2 || got.LastMessage.Content != "c" {
		t.Fatalf("match 1-2 summary = %+v", got)
	}
	if got := byMatch[m13.ID]; got.UnreadCount != 1 || got.LastMessage.Content != "d" {
		t.Fatalf("match 1-3 summary = %+v", got)
	}
	if convs[0].MatchID != m13.ID {
		t.Fatalf("ordering = %d first, want latest activity %d", convs[0].MatchID, m13.ID)
	}
}

func TestMatchesGroupedByEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	end := baseTime.Add(time.Hour)
	f.catalog.put(Event{ID: 20, Name: "Summer Mixer", AppEndAt: &end})
	f.gate.register(20, 1, 2)

	f.match(t, 10, 1, 2)
	f.match(t, 10, 3, 1)
	f.match(t, 20, 1, 2)

	groups, err := f.engine.Matches(ctx, 1, nil)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].EventID != 20 || groups[0].EventName != "Summer Mixer" || len(groups[0].Matches) != 1 {
		t.Fatalf("first group = %+v", groups[0])
	}
	if len(groups[1].Matches) != 2 || groups[1].Matches[0].User.ID != 3 {
		t.Fatalf("second group = %+v, want newest match with user 3 first", groups[1])
	}
}
