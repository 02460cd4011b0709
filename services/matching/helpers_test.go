package matching

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventmatch/pkg/db/dbtest"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// tickClock advances one millisecond per reading so rows get distinct times.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fakeGate struct {
	mu         sync.Mutex
	registered map[int64]map[int64]bool
	blocked    map[int64]map[int64]bool
	blockCalls int
}

func newFakeGate() *fakeGate {
	return &fakeGate{
		registered: make(map[int64]map[int64]bool),
		blocked:    make(map[int64]map[int64]bool),
	}
}

func (g *fakeGate) register(eventID int64, users ...int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.registered[eventID] == nil {
		g.registered[eventID] = make(map[int64]bool)
	}
	for _, u := range users {
		g.registered[eventID][u] = true
	}
}

func (g *fakeGate) unregister(eventID int64, users ...int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range users {
		delete(g.registered[eventID], u)
	}
}

func (g *fakeGate) setBlocked(eventID, userID int64, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocked[eventID] == nil {
		g.blocked[eventID] = make(map[int64]bool)
	}
	g.blocked[eventID][userID] = blocked
}

func (g *fakeGate) IsRegistered(_ context.Context, eventID, userID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registered[eventID][userID], nil
}

func (g *fakeGate) IsBlocked(_ context.Context, eventID, userID int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocked[eventID][userID], nil
}

func (g *fakeGate) BlockedAmong(_ context.Context, eventID int64, userIDs []int64) (map[int64]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockCalls++
	out := make(map[int64]bool)
	for _, id := range userIDs {
		if g.blocked[eventID][id] {
			out[id] = true
		}
	}
	return out, nil
}

func (g *fakeGate) RegisteredAmong(_ context.Context, eventID int64, userIDs []int64) (map[int64]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int64]bool)
	for _, id := range userIDs {
		if g.registered[eventID][id] {
			out[id] = true
		}
	}
	return out, nil
}

func (g *fakeGate) EligibleParticipants(_ context.Context, eventID int64) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []int64
	for id, ok := range g.registered[eventID] {
		if ok && !g.blocked[eventID][id] {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type fakeCatalog struct {
	mu     sync.Mutex
	events map[int64]Event
}

func (c *fakeCatalog) put(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[e.ID] = e
}

func (c *fakeCatalog) Event(_ context.Context, eventID int64) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.events[eventID]
	if !ok {
		return Event{}, NotFound("event not found")
	}
	return e, nil
}

func (c *fakeCatalog) Events(_ context.Context, eventIDs []int64) (map[int64]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]Event)
	for _, id := range eventIDs {
		if e, ok := c.events[id]; ok {
			out[id] = e
		}
	}
	return out, nil
}

type fakeProfiles struct{}

func (fakeProfiles) Summaries(_ context.Context, _ int64, userIDs []int64) (map[int64]ProfileSummary, error) {
	out := make(map[int64]ProfileSummary, len(userIDs))
	for _, id := range userIDs {
		out[id] = ProfileSummary{
			ID:        id,
			Firstname: fmt.Sprintf("user%d", id),
			Lastname:  "Doe",
			Photos:    []Photo{{ID: id, URL: fmt.Sprintf("https://photos.test/%d.jpg", id)}},
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
	return nil
}

func (n *recordingNotifier) ofKind(kind Kind) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, note := range n.got {
		if note.Kind == kind {
			out = append(out, note)
		}
	}
	return out
}

type fixture struct {
	engine   *Engine
	gate     *fakeGate
	catalog  *fakeCatalog
	notifier *recordingNotifier
	metrics  *Metrics
}

// newFixture returns an engine with event 10 open and users 1..4 registered.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &tickClock{t: baseTime}
	end := baseTime.Add(24 * time.Hour)
	start := baseTime.Add(-time.Hour)

	f := &fixture{
		gate:     newFakeGate(),
		catalog:  &fakeCatalog{events: make(map[int64]Event)},
		notifier: &recordingNotifier{},
		metrics:  NewMetrics(nil),
	}
	f.catalog.put(Event{ID: 10, Name: "Spring Mixer", AppStartAt: &start, AppEndAt: &end})
	f.gate.register(10, 1, 2, 3, 4)

	engine, err := New(Options{
		ORM:      dbtest.Open(t),
		Gate:     f.gate,
		Events:   f.catalog,
		Profiles: fakeProfiles{},
		Notifier: f.notifier,
		Logger:   zerolog.Nop(),
		Metrics:  f.metrics,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.engine = engine
	return f
}

// match makes a and b like each other in eventID and returns the match.
func (f *fixture) match(t *testing.T, eventID, a, b int64) Match {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.Like(ctx, eventID, a, b); err != nil {
		t.Fatalf("Like(%d->%d) error = %v", a, b, err)
	}
	res, err := f.engine.Like(ctx, eventID, b, a)
	if err != nil {
		t.Fatalf("Like(%d->%d) error = %v", b, a, err)
	}
	if !res.Matched {
		t.Fatalf("Like(%d->%d) matched = false", b, a)
	}
	m, err := f.engine.Registry().Get(ctx, res.Match.ID)
	if err != nil {
		t.Fatalf("Get(%d) error = %v", res.Match.ID, err)
	}
	return m
}

func wantCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("error code = %s (%v), want %s", got, err, code)
	}
}
