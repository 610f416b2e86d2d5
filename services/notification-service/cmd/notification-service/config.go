package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/careerpath/careerdesk/libs/config"
	"github.com/careerpath/careerdesk/libs/events"
	"github.com/careerpath/careerdesk/libs/kafkax"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"notification-service"`
	Port        string `env:"PORT" envDefault:"8085"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	KafkaBrokers string `env:"KAFKA_BROKERS,required,notEmpty"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID" envDefault:"notification-service"`
	// Appointment events let the dispatcher skip reminders for withdrawn appointments.
	ConsumeTopics []string `env:"KAFKA_CONSUME_TOPICS" envSeparator:"," envDefault:"booking.reminder.due.v1,booking.appointment.cancelled.v1,booking.appointment.status_changed.v1"`

	SMTPHost string `env:"SMTP_HOST" envDefault:"mailpit"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"no-reply@careerdesk.local"`

	SMSProvider      string `env:"SMS_PROVIDER" envDefault:"noop"`
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`

	FailSuffix string `env:"NOTIFICATION_FAIL_SUFFIX"`
}

func loadConfig(dotenv ...string) (Config, []string, error) {
	var cfg Config
	if err := config.Load(&cfg, dotenv...); err != nil {
		return Config{}, nil, err
	}
	if err := config.ValidatePort("PORT", cfg.Port); err != nil {
		return Config{}, nil, err
	}
	brokers := kafkax.SplitBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return Config{}, nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	cfg.SMSProvider = strings.ToLower(strings.TrimSpace(cfg.SMSProvider))
	switch cfg.SMSProvider {
	case "noop", "twilio":
	default:
		return Config{}, nil, fmt.Errorf("SMS_PROVIDER must be noop or twilio (got %q)", cfg.SMSProvider)
	}
	var topics []string
	for _, t := range cfg.ConsumeTopics {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	if !slices.Contains(topics, events.ReminderDue) {
		return Config{}, nil, fmt.Errorf("KAFKA_CONSUME_TOPICS must include %s", events.ReminderDue)
	}
	cfg.ConsumeTopics = topics
	return cfg, brokers, nil
}
