package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the matching API service.
type Config struct {
	Addr               string        `env:"ADDR,default=:8080"`
	DBDSN              string        `env:"DB_DSN,required"`
	NATSURL            string        `env:"NATS_URL"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=300"`
	PhotoBucket        string        `env:"PHOTO_BUCKET"`
	PhotoURLTTL        time.Duration `env:"PHOTO_URL_TTL,default=15m"`
	RealtimeEnabled    bool          `env:"REALTIME_ENABLED,default=true"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START,default=true"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	LogFormat          string        `env:"LOG_FORMAT,default=json"`
	MessagePageSize    int           `env:"MESSAGE_PAGE_SIZE,default=50"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
