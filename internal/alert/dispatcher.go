package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/metrics"
	"cyber-monitor/backend/internal/telemetry"
)

// DefaultSubject is used when a manual alert has no subject.
const DefaultSubject = "Cyber Monitor Alert"

// SystemDeviceID is the device id recorded on alert audit events.
const SystemDeviceID = "system"

const (
	triggerManual   = "manual"
	triggerSeverity = "severity"
	triggerTest     = "test"
)

// RecipientSource supplies the configured default recipient.
type RecipientSource interface {
	AlertRecipient(ctx context.Context) string
}

// AuditWriter stores alert audit events.
type AuditWriter interface {
	Create(ctx context.Context, e *domain.Event) error
}

// Request is a manually composed alert.
type Request struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// Deps are the collaborators of a Dispatcher. Emitter, Runner and Metrics may be nil.
type Deps struct {
	Mailer   Mailer
	Settings RecipientSource
	Audit    AuditWriter
	Emitter  telemetry.EventEmitter
	Runner   *telemetry.Runner
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Dispatcher sends alert emails and records each successful send as an alert event.
type Dispatcher struct {
	mailer   Mailer
	settings RecipientSource
	audit    AuditWriter
	emitter  telemetry.EventEmitter
	runner   *telemetry.Runner
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time
}

// NewDispatcher returns a dispatcher wired to deps.
func NewDispatcher(deps Deps) *Dispatcher {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		mailer:   deps.Mailer,
		settings: deps.Settings,
		audit:    deps.Audit,
		emitter:  deps.Emitter,
		runner:   deps.Runner,
		metrics:  deps.Metrics,
		log:      deps.Logger.With().Str("component", "alert").Logger(),
		now:      now,
	}
}

// Dispatch sends a manual alert. The recipient falls back to the configured one; the subject is
// prefixed with the upper-cased priority.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = string(domain.SeverityMedium)
	}
	if !domain.Severity(priority).Valid() {
		return domain.Invalid("priority", "must be one of low, medium, high, critical")
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.Invalid("message", "is required")
	}
	to, err := d.recipient(ctx, req.To)
	if err != nil {
		return err
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = DefaultSubject
	}

	sentAt := d.now().UTC()
	html, err := renderManual(priority, req.Message, sentAt)
	if err != nil {
		return fmt.Errorf("alert: render: %w", err)
	}
	msg := Message{
		To:       to,
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(priority), subject),
		HTML:     html,
		Text:     fmt.Sprintf("Priority: %s\n\n%s\n\nTimestamp: %s", strings.ToUpper(priority), req.Message, sentAt.Format(time.RFC1123)),
		Priority: priority,
	}
	return d.deliver(ctx, triggerManual, msg, req.Message, sentAt, nil)
}

// NotifyHighSeverity emails the configured recipient about e.
func (d *Dispatcher) NotifyHighSeverity(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return nil
	}
	to, err := d.recipient(ctx, "")
	if err != nil {
		return err
	}
	sentAt := d.now().UTC()
	view := severityView{
		Kind:       string(e.Kind),
		DeviceID:   e.DeviceID,
		Severity:   string(e.Severity),
		Payload:    prettyJSON(e.Payload),
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.DeviceInfo != nil {
		view.Hostname = e.DeviceInfo.Hostname
	}
	html, err := render(severityTmpl, view)
	if err != nil {
		return fmt.Errorf("alert: render: %w", err)
	}
	text := fmt.Sprintf("Security Alert\nType: %s\nDevice: %s\nSeverity: %s\nTime: %s\n\n%s",
		view.Kind, view.DeviceID, view.Severity, view.OccurredAt, view.Payload)
	msg := Message{
		To:       to,
		Subject:  "High Priority Alert - " + string(e.Kind),
		HTML:     html,
		Text:     text,
		Priority: string(e.Severity),
	}
	return d.deliver(ctx, triggerSeverity, msg, text, sentAt, e)
}

// Verify checks that the transport accepts a connection and the credentials.
func (d *Dispatcher) Verify(ctx context.Context) error {
	return asTransportError("verify", d.mailer.Verify(ctx))
}

// SendTest verifies the transport and sends a short test message to the explicit address to.
// With an empty to it only verifies; the configured recipient is never used.
func (d *Dispatcher) SendTest(ctx context.Context, to string) error {
	to = strings.TrimSpace(to)
	var addr *mail.Address
	if to != "" {
		var err error
		if addr, err = mail.ParseAddress(to); err != nil {
			return domain.Invalid("email", "not a valid email address")
		}
	}
	if err := d.Verify(ctx); err != nil || addr == nil {
		d.metrics.AlertDispatched(triggerTest, err)
		return err
	}
	err := asTransportError("send", d.mailer.Send(ctx, Message{
		To:       addr.Address,
		Subject:  "Test Alert - Cyber Monitor",
		Text:     "If you receive this email, your email configuration is working correctly!",
		Priority: string(domain.SeverityLow),
	}))
	d.metrics.AlertDispatched(triggerTest, err)
	return err
}

func (d *Dispatcher) recipient(ctx context.Context, explicit string) (string, error) {
	to := strings.TrimSpace(explicit)
	if to == "" && d.settings != nil {
		to = d.settings.AlertRecipient(ctx)
	}
	if to == "" {
		return "", domain.Invalid("to", "no recipient given and no alert recipient configured")
	}
	addr, err := mail.ParseAddress(to)
	if err != nil {
		return "", domain.Invalid("to", "not a valid email address")
	}
	return addr.Address, nil
}

func (d *Dispatcher) deliver(ctx context.Context, trigger string, msg Message, body string, sentAt time.Time, cause *domain.Event) error {
	err := asTransportError("send", d.mailer.Send(ctx, msg))
	d.metrics.AlertDispatched(trigger, err)
	if err != nil {
		ev := d.log.Warn().Err(err).Str("trigger", trigger).Str("recipient", msg.To)
		if cause != nil {
			ev = ev.Str("event_id", cause.ID)
		}
		ev.Msg("alert send failed")
		return err
	}

	audit, err := auditEvent(trigger, msg, body, sentAt, cause)
	if err != nil {
		d.log.Error().Err(err).Msg("alert audit event not built")
		return nil
	}
	if d.audit != nil {
		if err := d.audit.Create(ctx, audit); err != nil {
			d.log.Error().Err(err).Str("recipient", msg.To).Msg("alert sent but audit event not stored")
			return nil
		}
	}
	telemetry.EmitAsync(d.runner, d.emitter, audit)
	d.log.Info().Str("trigger", trigger).Str("recipient", msg.To).Str("audit_event_id", audit.ID).Msg("alert sent")
	return nil
}

type auditPayload struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Recipient string `json:"recipient"`
	Priority  string `json:"priority"`
	SentAt    string `json:"sentAt"`
}

func auditEvent(trigger string, msg Message, body string, sentAt time.Time, cause *domain.Event) (*domain.Event, error) {
	ts := sentAt.Format(time.RFC3339Nano)
	payload, err := json.Marshal(auditPayload{
		Subject:   msg.Subject,
		Body:      body,
		Recipient: msg.To,
		Priority:  msg.Priority,
		SentAt:    ts,
	})
	if err != nil {
		return nil, err
	}
	severity := domain.Severity(msg.Priority)
	if !severity.Valid() {
		severity = domain.SeverityMedium
	}
	meta := map[string]string{"sentAt": ts, "trigger": trigger}
	if cause != nil {
		meta["triggerEventId"] = cause.ID
	}
	return &domain.Event{
		Kind:       domain.KindAlert,
		Payload:    payload,
		DeviceID:   SystemDeviceID,
		Severity:   severity,
		OccurredAt: sentAt,
		Tags:       []string{trigger},
		Metadata:   meta,
	}, nil
}

// Notifier is the capability ingestion uses to raise severity alerts.
type Notifier interface {
	NotifyHighSeverity(ctx context.Context, e *domain.Event) error
}

// NotifyAsync starts exactly one background attempt to notify about e. Failures are logged by the runner.
// Reports false when the runner no longer accepts tasks.
func NotifyAsync(r *telemetry.Runner, n Notifier, e *domain.Event) bool {
	if n == nil || e == nil {
		return false
	}
	snapshot := e.Clone()
	return r.Go("alert:"+snapshot.ID, func(ctx context.Context) error {
		return n.NotifyHighSeverity(ctx, snapshot)
	})
}

func asTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}
