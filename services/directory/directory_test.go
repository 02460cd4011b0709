package directory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"eventmatch/pkg/db/dbtest"
	"eventmatch/pkg/db/migrations"
	"eventmatch/services/matching"
)

type prefixSigner struct{ fail string }

func (s prefixSigner) URL(_ context.Context, key string) (string, error) {
	if key == s.fail {
		return "", errors.New("signing failed")
	}
	return "https://cdn.test/" + key, nil
}

func seed(t *testing.T, orm *gorm.DB) {
	t.Helper()
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	ten := int64(10)
	eleven := int64(11)

	rows := []any{
		&migrations.Event{ID: 10, Name: "Spring Mixer", AppEndAt: &end},
		&migrations.Event{ID: 11, Name: "Open Air"},
		&migrations.User{ID: 1, Firstname: "Ada", Lastname: "L"},
		&migrations.User{ID: 2, Firstname: "Bo", Lastname: "M"},
		&migrations.User{ID: 3, Firstname: "Cy", Lastname: "N"},
		&migrations.EventParticipant{EventID: 10, UserID: 1, Status: "active"},
		&migrations.EventParticipant{EventID: 10, UserID: 2, Status: "active", IsBlocked: true},
		&migrations.EventParticipant{EventID: 10, UserID: 3, Status: "removed"},
		&migrations.UserPhoto{UserID: 1, ObjectKey: "u1/general.jpg", Position: 0},
		&migrations.UserPhoto{UserID: 1, EventID: &ten, ObjectKey: "u1/e10-b.jpg", Position: 1},
		&migrations.UserPhoto{UserID: 1, EventID: &ten, ObjectKey: "u1/e10-a.jpg", Position: 0},
		&migrations.UserPhoto{UserID: 2, ObjectKey: "u2/general.jpg", Position: 0},
		&migrations.UserPhoto{UserID: 2, EventID: &eleven, ObjectKey: "u2/e11.jpg", Position: 0},
		&migrations.UserPhoto{UserID: 3, ObjectKey: "u3/broken.jpg", Position: 0},
	}
	for _, row := range rows {
		if err := orm.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
}

func newDirectory(t *testing.T) *Directory {
	t.Helper()
	orm := dbtest.Open(t)
	seed(t, orm)
	d, err := New(orm, prefixSigner{fail: "u3/broken.jpg"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

func TestMembership(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	tests := []struct {
		name           string
		user           int64
		wantRegistered bool
		wantBlocked    bool
	}{
		{name: "active", user: 1, wantRegistered: true},
		{name: "blocked stays registered", user: 2, wantRegistered: true, wantBlocked: true},
		{name: "removed", user: 3},
		{name: "unknown", user: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registered, err := d.IsRegistered(ctx, 10, tt.user)
			if err != nil || registered != tt.wantRegistered {
				t.Fatalf("IsRegistered() = %v, %v; want %v", registered, err, tt.wantRegistered)
			}
			blocked, err := d.IsBlocked(ctx, 10, tt.user)
			if err != nil || blocked != tt.wantBlocked {
				t.Fatalf("IsBlocked() = %v, %v; want %v", blocked, err, tt.wantBlocked)
			}
		})
	}

	blocked, err := d.BlockedAmong(ctx, 10, []int64{1, 2, 3})
	if err != nil || len(blocked) != 1 || !blocked[2] {
		t.Fatalf("BlockedAmong() = %v, %v; want only 2", blocked, err)
	}
	registered, err := d.RegisteredAmong(ctx, 10, []int64{1, 2, 3, 9})
	if err != nil || len(registered) != 2 || !registered[1] || !registered[2] {
		t.Fatalf("RegisteredAmong() = %v, %v; want 1 and 2", registered, err)
	}
	eligible, err := d.EligibleParticipants(ctx, 10)
	if err != nil || len(eligible) != 1 || eligible[0] != 1 {
		t.Fatalf("EligibleParticipants() = %v, %v; want [1]", eligible, err)
	}
}

func TestEvents(t *testing.T) {
	d := newDirectory(t)
	ctx := context.Background()

	e, err := d.Event(ctx, 10)
	if err != nil || e.Name != "Spring Mixer" || e.AppEndAt == nil {
		t.Fatalf("Event(10) = %+v, %v", e, err)
	}
	if _, err := d.Event(ctx, 99); !matching.IsCode(err, matching.CodeNotFound) {
		t.Fatalf("Event(99) error = %v, want NOT_FOUND", err)
	}

	events, err := d.Events(ctx, []int64{10, 11, 99})
	if err != nil || len(events) != 2 || events[11].AppEndAt != nil {
		t.Fatalf("Events() = %+v, %v", events, err)
	}
}

func TestSummariesPreferEventPhotos(t *testing.T) {
	d := newDirectory(t)

	got, err := d.Summaries(context.Background(), 10, []int64{1, 2, 3, 9})
	if err != nil {
		t.Fatalf("Summaries() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Summaries() len = %d, want 3", len(got))
	}

	ada := got[1]
	if ada.Firstname != "Ada" || len(ada.Photos) != 2 {
		t.Fatalf("user 1 = %+v, want two event photos", ada)
	}
	if !strings.HasSuffix(ada.Photos[0].URL, "u1/e10-a.jpg") || !strings.HasSuffix(ada.Photos[1].URL, "u1/e10-b.jpg") {
		t.Fatalf("user 1 photos = %+v, want event photos by position", ada.Photos)
	}

	bo := got[2]
	if len(bo.Photos) != 1 || bo.Photos[0].URL != "https://cdn.test/u2/general.jpg" {
		t.Fatalf("user 2 photos = %+v, want general fallback", bo.Photos)
	}

	if cy := got[3]; len(cy.Photos) != 0 || cy.Photos == nil {
		t.Fatalf("user 3 photos = %#v, want empty after signing failure", cy.Photos)
	}
}
