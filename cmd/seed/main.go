// seed inserts demo events through the ingestion service so local dashboards have data.
// Alerts are not sent while seeding.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cyber-monitor/backend/internal/config"
	"cyber-monitor/backend/internal/db"
	devicerepo "cyber-monitor/backend/internal/device/repository"
	"cyber-monitor/backend/internal/event/domain"
	eventrepo "cyber-monitor/backend/internal/event/repository"
	eventservice "cyber-monitor/backend/internal/event/service"
	"cyber-monitor/backend/internal/logger"
)

type demoDevice struct {
	id   string
	info domain.DeviceInfo
}

var demoDevices = []demoDevice{
	{"lab-01", domain.DeviceInfo{Hostname: "lab-01.corp", Platform: "windows", IP: "10.0.4.11", AgentVersion: "1.4.2"}},
	{"lab-02", domain.DeviceInfo{Hostname: "lab-02.corp", Platform: "linux", IP: "10.0.4.12", AgentVersion: "1.4.2"}},
	{"reception", domain.DeviceInfo{Hostname: "reception.corp", Platform: "windows", IP: "10.0.7.3", AgentVersion: "1.3.9"}},
}

var demoKinds = []domain.Kind{
	domain.KindKeylog, domain.KindScreenshot, domain.KindSystem,
	domain.KindClipboard, domain.KindWebcam, domain.KindAudio,
}

func main() {
	var (
		count int
		days  int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Insert demo monitoring events",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is not set; seeding an in-memory store has no effect")
			}
			l := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			return run(cmd.Context(), cfg.DatabaseURL, count, days, seed, l)
		},
	}
	cmd.Flags().IntVar(&count, "count", 200, "number of events to insert")
	cmd.Flags().IntVar(&days, "days", 14, "spread events over this many past days")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed for reproducible data")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, dsn string, count, days int, seed uint64, l zerolog.Logger) error {
	database, err := db.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer database.Close()

	svc := eventservice.New(eventservice.Deps{
		Store:   eventrepo.NewPostgresRepository(database),
		Devices: devicerepo.NewPostgresRepository(database),
		Logger:  zerolog.Nop(),
	})

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := time.Now().UTC()
	for i, in := range demoEvents(rng, now, count, days) {
		if _, err := svc.Ingest(ctx, in, nil); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	l.Info().Int("count", count).Int("days", days).Msg("demo events inserted")
	return nil
}

// demoEvents builds count events spread uniformly over the last days days.
func demoEvents(rng *rand.Rand, now time.Time, count, days int) []eventservice.NewEvent {
	if days < 1 {
		days = 1
	}
	window := time.Duration(days) * 24 * time.Hour
	out := make([]eventservice.NewEvent, 0, count)
	for range count {
		dev := demoDevices[rng.IntN(len(demoDevices))]
		kind := demoKinds[rng.IntN(len(demoKinds))]
		info := dev.info
		out = append(out, eventservice.NewEvent{
			Kind:       kind,
			Payload:    demoPayload(rng, kind),
			DeviceID:   dev.id,
			DeviceInfo: &info,
			Severity:   demoSeverity(rng),
			OccurredAt: now.Add(-time.Duration(rng.Int64N(int64(window)))),
			Tags:       []string{"demo"},
		})
	}
	return out
}

func demoSeverity(rng *rand.Rand) domain.Severity {
	switch n := rng.IntN(100); {
	case n < 60:
		return domain.SeverityLow
	case n < 85:
		return domain.SeverityMedium
	case n < 97:
		return domain.SeverityHigh
	default:
		return domain.SeverityCritical
	}
}

func demoPayload(rng *rand.Rand, kind domain.Kind) json.RawMessage {
	var v any
	switch kind {
	case domain.KindKeylog:
		v = map[string]any{"window": "Terminal", "keys": "ls -la"}
	case domain.KindScreenshot:
		v = map[string]any{"width": 1920, "height": 1080}
	case domain.KindClipboard:
		v = map[string]any{"length": rng.IntN(400)}
	case domain.KindWebcam:
		v = map[string]any{"camera": "integrated", "motion": rng.IntN(2) == 1}
	case domain.KindAudio:
		v = map[string]any{"durationSeconds": 5 + rng.IntN(55)}
	default:
		v = map[string]any{"cpu": rng.IntN(100), "memory": rng.IntN(100)}
	}
	b, _ := json.Marshal(v)
	return b
}
