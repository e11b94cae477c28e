// Worker consumes stored events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, EVENT_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"cyber-monitor/backend/internal/config"
	"cyber-monitor/backend/internal/logger"
	"cyber-monitor/backend/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader used by the consume loop.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// eventPusher is the subset of *loki.Client used by the consume loop.
type eventPusher interface {
	PushEventJSON(ctx context.Context, rawJSON []byte) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	l := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).With().Str("component", "worker").Logger()

	brokers := cfg.EventKafkaBrokersList()
	if len(brokers) == 0 {
		l.Fatal().Msg("KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		l.Fatal().Msg("LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.EventKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info().
		Str("topic", cfg.EventKafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Str("loki", cfg.LokiURL).
		Msg("consuming events")

	n := consume(ctx, reader, loki.NewClient(cfg.LokiURL, "cyber-monitor", nil), l)
	l.Info().Int("pushed", n).Msg("worker stopped")
}

// consume pushes every message to Loki until ctx is cancelled and returns the number pushed.
// Read and push failures are logged and skipped.
func consume(ctx context.Context, r messageReader, p eventPusher, l zerolog.Logger) int {
	pushed := 0
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return pushed
			}
			l.Warn().Err(err).Msg("kafka read failed")
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := p.PushEventJSON(pushCtx, msg.Value); err != nil {
			l.Warn().Err(err).Int64("offset", msg.Offset).Msg("loki push failed")
		} else {
			pushed++
		}
		cancel()
	}
}
