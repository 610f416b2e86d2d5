package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/careerpath/careerdesk/libs/httpx"
	"github.com/careerpath/careerdesk/libs/kafkax"
	otelx "github.com/careerpath/careerdesk/libs/otel"
	"github.com/careerpath/careerdesk/libs/runtime"
	"github.com/careerpath/careerdesk/services/notification-service/internal/dispatch"
	"github.com/careerpath/careerdesk/services/notification-service/internal/email"
	"github.com/careerpath/careerdesk/services/notification-service/internal/sms"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg, brokers, err := loadConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(cfg.ServiceName)
	if err != nil {
		logger.Error("otel config invalid", "err", err)
		os.Exit(1)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var smsSender sms.Sender = sms.NewNoopSender()
	if cfg.SMSProvider == "twilio" {
		tw, err := sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		if err != nil {
			logger.Error("twilio sender", "err", err)
			os.Exit(1)
		}
		smsSender = tw
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
	}
	defer writer.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     cfg.KafkaGroupID,
		GroupTopics: cfg.ConsumeTopics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	dispatcher := dispatch.New(email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), smsSender, writer, logger, cfg.FailSuffix)
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Run(ctx, reader)
	}()

	mux := runtime.NewBaseMux(runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(handler, "notification"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr, "topics", cfg.ConsumeTopics, "sms_provider", smsSender.ProviderID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	<-done
	logger.Info("notification-service stopped")
}
