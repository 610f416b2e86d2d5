package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/careerpath/careerdesk/libs/config"
	"github.com/careerpath/careerdesk/libs/kafkax"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"booking-service"`
	Port        string `env:"PORT" envDefault:"8083"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	BusinessTimezone             string `env:"BUSINESS_TIMEZONE" envDefault:"UTC"`
	SlotStepMinutes              int    `env:"SLOT_STEP_MINUTES" envDefault:"0"`
	SlotRangeMaxDays             int    `env:"SLOT_RANGE_MAX_DAYS" envDefault:"31"`
	RescheduleResetsConfirmation bool   `env:"RESCHEDULE_RESETS_CONFIRMATION" envDefault:"true"`

	ReminderOffsetsMinutes []int  `env:"REMINDER_OFFSETS_MINUTES" envSeparator:"," envDefault:"1440,60"`
	ReminderSweepSchedule  string `env:"REMINDER_SWEEP_SCHEDULE" envDefault:"@every 30s"`
	ReminderSweepBatch     int    `env:"REMINDER_SWEEP_BATCH" envDefault:"100"`

	JWTSecret string `env:"JWT_HMAC_SECRET,required,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER"`

	KafkaBrokers       string        `env:"KAFKA_BROKERS"`
	KafkaGroupID       string        `env:"KAFKA_GROUP_ID" envDefault:"booking-service"`
	KafkaResultTopics  []string      `env:"KAFKA_RESULT_TOPICS" envSeparator:"," envDefault:"notification.sent.v1,notification.failed.v1"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`

	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	BcryptCost         int      `env:"BCRYPT_COST" envDefault:"10"`
}

// settings are the values derived from Config after validation.
type settings struct {
	Location        *time.Location
	ReminderOffsets []time.Duration
	SlotStep        time.Duration
	Brokers         []string
}

func loadConfig(dotenv ...string) (Config, settings, error) {
	var cfg Config
	if err := config.Load(&cfg, dotenv...); err != nil {
		return Config{}, settings{}, err
	}
	var s settings
	var err error
	if err = config.ValidatePort("PORT", cfg.Port); err != nil {
		return Config{}, settings{}, err
	}
	if s.Location, err = config.Location(cfg.BusinessTimezone); err != nil {
		return Config{}, settings{}, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	if s.ReminderOffsets, err = config.Minutes("REMINDER_OFFSETS_MINUTES", cfg.ReminderOffsetsMinutes); err != nil {
		return Config{}, settings{}, err
	}
	if cfg.SlotStepMinutes < 0 {
		return Config{}, settings{}, fmt.Errorf("SLOT_STEP_MINUTES must not be negative (got %d)", cfg.SlotStepMinutes)
	}
	s.SlotStep = time.Duration(cfg.SlotStepMinutes) * time.Minute
	if cfg.RateLimitPerMinute <= 0 {
		return Config{}, settings{}, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive (got %d)", cfg.RateLimitPerMinute)
	}
	s.Brokers = kafkax.SplitBrokers(cfg.KafkaBrokers)

	var topics []string
	for _, t := range cfg.KafkaResultTopics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	cfg.KafkaResultTopics = topics
	return cfg, s, nil
}
