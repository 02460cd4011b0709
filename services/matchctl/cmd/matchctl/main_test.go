package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"eventmatch/pkg/db/dbtest"
	"eventmatch/pkg/db/migrations"
)

func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	orm := dbtest.Open(t)
	prev := openORM
	openORM = func(context.Context, string) (*gorm.DB, func(), error) {
		return orm, func() {}, nil
	}
	t.Cleanup(func() { openORM = prev })
	return orm
}

func execute(args ...string) (string, error) {
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestArchiveAndUnarchive(t *testing.T) {
	orm := useTestDB(t)
	now := time.Now().UTC()
	rows := []any{
		&migrations.Event{ID: 10, Name: "Spring Mixer"},
		&migrations.User{ID: 1, Firstname: "Ada"},
		&migrations.User{ID: 2, Firstname: "Bo"},
		&migrations.User{ID: 3, Firstname: "Cy"},
		&migrations.EventParticipant{EventID: 10, UserID: 1, Status: "active"},
		&migrations.EventParticipant{EventID: 10, UserID: 2, Status: "active"},
		&migrations.EventParticipant{EventID: 10, UserID: 3, Status: "removed"},
		&migrations.Match{EventID: 10, UserLowID: 1, UserHighID: 2, CreatedAt: now},
		&migrations.Match{EventID: 10, UserLowID: 1, UserHighID: 3, CreatedAt: now},
		&migrations.Match{EventID: 10, UserLowID: 2, UserHighID: 3, CreatedAt: now},
	}
	for _, row := range rows {
		if err := orm.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}

	tests := []struct {
		args []string
		key  string
		want float64
	}{
		{args: []string{"archive", "--dsn", "test", "--event", "10", "--user", "1"}, key: "archived", want: 2},
		{args: []string{"unarchive", "--dsn", "test", "--event", "10", "--user", "1"}, key: "unarchived", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			out, err := execute(tt.args...)
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			var got map[string]float64
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("decode %q: %v", out, err)
			}
			if got[tt.key] != tt.want {
				t.Fatalf("%s = %v, want %v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestArgumentErrors(t *testing.T) {
	useTestDB(t)
	t.Setenv("DB_DSN", "")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing user flag", args: []string{"erase", "--dsn", "x", "--event", "10"}, wantErr: "user"},
		{name: "non positive ids", args: []string{"archive", "--dsn", "x", "--event", "0", "--user", "1"}, wantErr: "positive"},
		{name: "missing dsn", args: []string{"archive", "--event", "10", "--user", "1"}, wantErr: "DB_DSN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("execute() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
