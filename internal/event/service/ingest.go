// Package service implements event ingestion and lifecycle operations.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cyber-monitor/backend/internal/alert"
	devicedomain "cyber-monitor/backend/internal/device/domain"
	"cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/metrics"
	"cyber-monitor/backend/internal/telemetry"
)

// DefaultMaxAttachmentBytes is the attachment size ceiling when none is configured.
const DefaultMaxAttachmentBytes = 10 << 20

// AttachmentExtensions are the accepted attachment file extensions.
var AttachmentExtensions = []string{".jpeg", ".jpg", ".png", ".gif", ".wav", ".mp3", ".txt", ".log"}

// NewEvent is the caller-supplied part of an event.
type NewEvent struct {
	Kind       domain.Kind
	Payload    json.RawMessage
	DeviceID   string
	DeviceInfo *domain.DeviceInfo
	// Severity defaults to low.
	Severity domain.Severity
	// OccurredAt defaults to the ingest time.
	OccurredAt time.Time
	Tags       []string
	Metadata   map[string]string
}

// Attachment is a binary file uploaded with an event.
type Attachment struct {
	Filename string
	MimeType string
	// Size is the declared size, or -1 when unknown. The stored byte count is authoritative.
	Size int64
	Body io.Reader
}

// Store is the event persistence used by the service.
type Store interface {
	Create(ctx context.Context, e *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	MarkRead(ctx context.Context, id string) (*domain.Event, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// FileStore keeps attachment bytes.
type FileStore interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, int64, error)
	Remove(path string) error
}

// DeviceTracker records device sightings.
type DeviceTracker interface {
	Touch(ctx context.Context, s devicedomain.Sighting) error
}

// ThresholdSource supplies the current automatic-alert threshold.
type ThresholdSource interface {
	AlertThreshold(ctx context.Context) domain.Severity
}

// Deps are the collaborators of a Service. Everything except Store may be nil.
type Deps struct {
	Store          Store
	Files          FileStore
	Devices        DeviceTracker
	Thresholds     ThresholdSource
	Notifier       alert.Notifier
	Emitter        telemetry.EventEmitter
	Runner         *telemetry.Runner
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	MaxUploadBytes int64
	Now            func() time.Time
}

// Service validates and stores events and triggers their side effects.
type Service struct {
	store      Store
	files      FileStore
	devices    DeviceTracker
	thresholds ThresholdSource
	notifier   alert.Notifier
	emitter    telemetry.EventEmitter
	runner     *telemetry.Runner
	metrics    *metrics.Metrics
	log        zerolog.Logger
	maxUpload  int64
	now        func() time.Time
}

// New returns an ingestion service wired to deps.
func New(deps Deps) *Service {
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxAttachmentBytes
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      deps.Store,
		files:      deps.Files,
		devices:    deps.Devices,
		thresholds: deps.Thresholds,
		notifier:   deps.Notifier,
		emitter:    deps.Emitter,
		runner:     deps.Runner,
		metrics:    deps.Metrics,
		log:        deps.Logger.With().Str("component", "ingest").Logger(),
		maxUpload:  maxUpload,
		now:        now,
	}
}

// MaxUploadBytes returns the attachment size ceiling.
func (s *Service) MaxUploadBytes() int64 { return s.maxUpload }

// Ingest validates in, stores the attachment if any, persists the event and starts its side
// effects: device tracking, event stream publication and, at or above the alert threshold, one
// background notification attempt. Side effects never fail the ingest.
func (s *Service) Ingest(ctx context.Context, in NewEvent, att *Attachment) (*domain.Event, error) {
	e, err := s.build(in, att)
	if err != nil {
		s.reject(err)
		return nil, err
	}

	if att != nil {
		ref, err := s.saveAttachment(ctx, att)
		if err != nil {
			s.reject(err)
			return nil, err
		}
		payload, err := json.Marshal(ref)
		if err != nil {
			s.removeFile(ref.Path)
			return nil, fmt.Errorf("ingest: encode file reference: %w", err)
		}
		e.Payload = payload
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		e.Metadata["originalName"] = filepath.Base(att.Filename)
		e.Metadata[domain.MetaAttachmentPath] = ref.Path
	}

	if err := s.store.Create(ctx, e); err != nil {
		if path, ok := e.AttachmentPath(); ok {
			s.removeFile(path)
		}
		return nil, &domain.StoreError{Op: "create", Err: err}
	}

	s.metrics.EventIngested(string(e.Kind), string(e.Severity))
	s.track(ctx, e)
	telemetry.EmitAsync(s.runner, s.emitter, e)
	alerted := s.maybeAlert(ctx, e)

	s.log.Info().
		Str("event_id", e.ID).
		Str("kind", string(e.Kind)).
		Str("device_id", e.DeviceID).
		Str("severity", string(e.Severity)).
		Bool("alert", alerted).
		Msg("event ingested")
	return e, nil
}

func (s *Service) build(in NewEvent, att *Attachment) (*domain.Event, error) {
	if !in.Kind.Valid() {
		return nil, domain.Invalid("kind", "unknown kind %q", in.Kind)
	}
	severity := in.Severity
	if severity == "" {
		severity = domain.SeverityLow
	}
	if !severity.Valid() {
		return nil, domain.Invalid("severity", "unknown severity %q", in.Severity)
	}
	deviceID := strings.TrimSpace(in.DeviceID)
	if deviceID == "" {
		return nil, domain.Invalid("deviceId", "is required")
	}

	var payload json.RawMessage
	if att == nil {
		trimmed := bytes.TrimSpace(in.Payload)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, domain.Invalid("payload", "is required")
		}
		if !json.Valid(trimmed) {
			return nil, domain.Invalid("payload", "must be valid JSON")
		}
		payload = append(json.RawMessage(nil), trimmed...)
	} else if err := s.checkAttachment(att); err != nil {
		return nil, err
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	var info *domain.DeviceInfo
	if in.DeviceInfo != nil {
		di := *in.DeviceInfo
		info = &di
	}
	var meta map[string]string
	if len(in.Metadata) > 0 {
		meta = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			meta[k] = v
		}
		delete(meta, domain.MetaAttachmentPath)
	}
	return &domain.Event{
		Kind:       in.Kind,
		Payload:    payload,
		DeviceID:   deviceID,
		DeviceInfo: info,
		Severity:   severity,
		OccurredAt: occurredAt.UTC(),
		Tags:       domain.NormalizeTags(in.Tags),
		Metadata:   meta,
	}, nil
}

func (s *Service) checkAttachment(att *Attachment) error {
	if s.files == nil {
		return domain.Invalid("attachment", "file uploads are not enabled")
	}
	if att.Body == nil || strings.TrimSpace(att.Filename) == "" {
		return domain.Invalid("attachment", "no file provided")
	}
	if !allowedExtension(att.Filename) {
		return domain.Invalid("attachment", "invalid file type %q", filepath.Ext(att.Filename))
	}
	if att.Size > s.maxUpload {
		return domain.Invalid("attachment", "file exceeds %d bytes", s.maxUpload)
	}
	return nil
}

func allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range AttachmentExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// saveAttachment stores at most maxUpload bytes of att. A larger body is removed again and rejected.
func (s *Service) saveAttachment(ctx context.Context, att *Attachment) (domain.FileRef, error) {
	path, size, err := s.files.Save(ctx, att.Filename, io.LimitReader(att.Body, s.maxUpload+1))
	if err != nil {
		return domain.FileRef{}, fmt.Errorf("ingest: store attachment: %w", err)
	}
	if size > s.maxUpload {
		s.removeFile(path)
		return domain.FileRef{}, domain.Invalid("attachment", "file exceeds %d bytes", s.maxUpload)
	}
	mimeType := att.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(att.Filename))); byExt != "" {
			mimeType = byExt
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return domain.FileRef{
		Filename: filepath.Base(path),
		Path:     path,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

func (s *Service) removeFile(path string) {
	if s.files == nil || path == "" {
		return
	}
	if err := s.files.Remove(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("attachment not removed")
	}
}

func (s *Service) reject(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		s.metrics.EventRejected(ve.Field)
	}
}

func (s *Service) track(ctx context.Context, e *domain.Event) {
	if s.devices == nil {
		return
	}
	sighting := devicedomain.Sighting{DeviceID: e.DeviceID, At: e.OccurredAt}
	if e.DeviceInfo != nil {
		sighting.Hostname = e.DeviceInfo.Hostname
		sighting.Platform = e.DeviceInfo.Platform
		sighting.IP = e.DeviceInfo.IP
		sighting.AgentVersion = e.DeviceInfo.AgentVersion
	}
	if err := s.devices.Touch(ctx, sighting); err != nil {
		s.log.Warn().Err(err).Str("device_id", e.DeviceID).Str("event_id", e.ID).Msg("device sighting not recorded")
	}
}

func (s *Service) maybeAlert(ctx context.Context, e *domain.Event) bool {
	if s.notifier == nil {
		return false
	}
	threshold := domain.SeverityHigh
	if s.thresholds != nil {
		threshold = s.thresholds.AlertThreshold(ctx)
	}
	if !e.Severity.AtLeast(threshold) {
		return false
	}
	if !alert.NotifyAsync(s.runner, s.notifier, e) {
		s.log.Warn().Str("event_id", e.ID).Msg("alert not scheduled: shutting down")
		return false
	}
	return true
}

// Get returns the event for id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Event, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, &domain.StoreError{Op: "get", Err: err}
	}
	if e == nil {
		return nil, &domain.NotFoundError{ID: id}
	}
	return e, nil
}

// Acknowledge marks the event read and returns it.
func (s *Service) Acknowledge(ctx context.Context, id string) (*domain.Event, error) {
	e, err := s.store.MarkRead(ctx, id)
	if err != nil {
		return nil, &domain.StoreError{Op: "mark read", Err: err}
	}
	if e == nil {
		return nil, &domain.NotFoundError{ID: id}
	}
	return e, nil
}

// Remove deletes the event and, best-effort, its stored attachment.
func (s *Service) Remove(ctx context.Context, id string) error {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return &domain.StoreError{Op: "get", Err: err}
	}
	if e == nil {
		return &domain.NotFoundError{ID: id}
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	if !deleted {
		return &domain.NotFoundError{ID: id}
	}
	if path, ok := e.AttachmentPath(); ok {
		s.removeFile(path)
	}
	s.log.Info().Str("event_id", id).Msg("event removed")
	return nil
}
