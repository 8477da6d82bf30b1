package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	GatewayWebhookURL string `env:"GATEWAY_WEBHOOK_URL,required=true"`

	BookingTimezone string `env:"BOOKING_TIMEZONE,default=UTC"`
	DefaultChannel  string `env:"DEFAULT_CHANNEL,default=sms"`

	// Reminder lead times before the booking slot, semicolon separated durations.
	ReminderOffsets string `env:"REMINDER_OFFSETS,default=24h;2h"`

	RetryCycleInterval time.Duration `env:"RETRY_CYCLE_INTERVAL,default=30s"`
	RetryCycleLimit    int           `env:"RETRY_CYCLE_LIMIT,default=100"`
	SendTimeout        time.Duration `env:"SEND_TIMEOUT,default=10s"`

	ServiceCacheTTL     time.Duration `env:"SERVICE_CACHE_TTL,default=5m"`
	ServiceCacheMaxSize int           `env:"SERVICE_CACHE_MAX_SIZE,default=512"`

	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	APIPort         int    `env:"API_PORT,default=8080"`
	LogLevel        string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Location resolves the configured booking timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BookingTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid booking timezone %q: %w", c.BookingTimezone, err)
	}
	return loc, nil
}

// ReminderOffsetDurations parses the semicolon-separated reminder lead times.
func (c *Config) ReminderOffsetDurations() ([]time.Duration, error) {
	parts := strings.Split(c.ReminderOffsets, ";")
	offsets := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		d, err := time.ParseDuration(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder offset %q: %w", trimmed, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("reminder offset %q must be positive", trimmed)
		}
		offsets = append(offsets, d)
	}
	if len(offsets) == 0 {
		return nil, fmt.Errorf("at least one reminder offset is required")
	}
	return offsets, nil
}
