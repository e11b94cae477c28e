package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/telemetry"
)

// recordEmitter is the subset of otellog.Logger used by the emitter.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("cyber-monitor.events")}
}

// NewEventEmitterWithLogger wraps an existing logger; used by tests to capture records.
func NewEventEmitterWithLogger(l recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the event to an OTel log record. The payload becomes the body.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.OccurredAt.IsZero() {
		rec.SetTimestamp(event.OccurredAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetEventName("cyber_monitor." + string(event.Kind))
	rec.SetSeverity(severityOf(event.Severity))
	rec.SetSeverityText(string(event.Severity))
	if len(event.Payload) > 0 {
		rec.SetBody(otellog.BytesValue(event.Payload))
	}

	attrs := []otellog.KeyValue{
		otellog.String("event_id", event.ID),
		otellog.String("kind", string(event.Kind)),
		otellog.String("device_id", event.DeviceID),
		otellog.Bool("is_read", event.IsRead),
	}
	if event.DeviceInfo != nil && event.DeviceInfo.Hostname != "" {
		attrs = append(attrs, otellog.String("hostname", event.DeviceInfo.Hostname))
	}
	if len(event.Tags) > 0 {
		vals := make([]otellog.Value, len(event.Tags))
		for i, t := range event.Tags {
			vals[i] = otellog.StringValue(t)
		}
		attrs = append(attrs, otellog.Slice("tags", vals...))
	}
	if id := event.Metadata["triggerEventId"]; id != "" {
		attrs = append(attrs, otellog.String("trigger_event_id", id))
	}
	rec.AddAttributes(attrs...)

	e.logger.Emit(ctx, rec)
	return nil
}

func severityOf(s domain.Severity) otellog.Severity {
	switch s {
	case domain.SeverityMedium:
		return otellog.SeverityWarn
	case domain.SeverityHigh:
		return otellog.SeverityError
	case domain.SeverityCritical:
		return otellog.SeverityFatal
	}
	return otellog.SeverityInfo
}
