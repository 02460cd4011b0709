package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "missing dsn",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name: "defaults",
			env:  map[string]string{"DB_DSN": "postgres://localhost/eventmatch"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Addr != ":8080" || cfg.RateLimitPerMinute != 300 || cfg.MessagePageSize != 50 {
					t.Fatalf("unexpected defaults %+v", cfg)
				}
				if cfg.PhotoURLTTL != 15*time.Minute || !cfg.RealtimeEnabled || !cfg.MigrateOnStart {
					t.Fatalf("unexpected defaults %+v", cfg)
				}
				if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
					t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
				}
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"DB_DSN":               "postgres://localhost/eventmatch",
				"NATS_URL":             "nats://nats:4222",
				"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example",
				"REALTIME_ENABLED":     "false",
				"PHOTO_URL_TTL":        "2m",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.NATSURL != "nats://nats:4222" || cfg.RealtimeEnabled || cfg.PhotoURLTTL != 2*time.Minute {
					t.Fatalf("unexpected config %+v", cfg)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(context.Background(), envconfig.MapLookuper(tt.env))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("load() error = %v", err)
			}
			tt.check(t, cfg)
		})
	}
}
