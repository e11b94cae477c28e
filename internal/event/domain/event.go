// Package domain defines the monitored-endpoint Event and its vocabularies.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind is the category of an event reported by an endpoint agent.
type Kind string

const (
	KindKeylog     Kind = "keylog"
	KindScreenshot Kind = "screenshot"
	KindSystem     Kind = "system"
	KindClipboard  Kind = "clipboard"
	KindWebcam     Kind = "webcam"
	KindAudio      Kind = "audio"
	KindAlert      Kind = "alert"
)

// Kinds lists every valid Kind in display order.
var Kinds = []Kind{KindKeylog, KindScreenshot, KindSystem, KindClipboard, KindWebcam, KindAudio, KindAlert}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Severity is an ordered importance level.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the position of s in the order low < medium < high < critical, or -1 if s is unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() >= 0 }

// AtLeast reports whether s is at or above threshold. Unknown values never qualify.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Valid() && threshold.Valid() && s.Rank() >= threshold.Rank()
}

// DeviceInfo describes the endpoint that produced an event.
type DeviceInfo struct {
	Hostname     string `json:"hostname,omitempty"`
	Platform     string `json:"platform,omitempty"`
	IP           string `json:"ip,omitempty"`
	AgentVersion string `json:"agentVersion,omitempty"`
}

// FileRef is the payload of an event that carries a stored binary attachment.
type FileRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Event is one persisted record of endpoint activity or an alert audit entry.
type Event struct {
	ID         string            `json:"id"`
	Kind       Kind              `json:"kind"`
	Payload    json.RawMessage   `json:"payload"`
	DeviceID   string            `json:"deviceId"`
	DeviceInfo *DeviceInfo       `json:"deviceInfo,omitempty"`
	Severity   Severity          `json:"severity"`
	OccurredAt time.Time         `json:"occurredAt"`
	Tags       []string          `json:"tags"`
	Metadata   map[string]string `json:"metadata"`
	IsRead     bool              `json:"isRead"`
}

// FileRef decodes the payload as a file reference. ok is false when the payload is not one.
func (e *Event) FileRef() (ref FileRef, ok bool) {
	if e == nil || len(e.Payload) == 0 {
		return FileRef{}, false
	}
	if err := json.Unmarshal(e.Payload, &ref); err != nil {
		return FileRef{}, false
	}
	return ref, ref.Path != "" && ref.Filename != ""
}

// MetaAttachmentPath is the metadata key ingestion sets to the path of an attachment it stored.
// Caller-supplied values under this key are discarded.
const MetaAttachmentPath = "attachmentPath"

// AttachmentPath returns the path of the stored file owned by e. A payload that merely looks like a
// file reference does not own a file.
func (e *Event) AttachmentPath() (string, bool) {
	if e == nil {
		return "", false
	}
	path := e.Metadata[MetaAttachmentPath]
	if path == "" {
		return "", false
	}
	if ref, ok := e.FileRef(); !ok || ref.Path != path {
		return "", false
	}
	return path, true
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	if e.DeviceInfo != nil {
		di := *e.DeviceInfo
		c.DeviceInfo = &di
	}
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// NormalizeTags trims and drops empty labels and removes duplicates, keeping the first occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DefaultListLimit is applied when a Filter leaves Limit at zero.
const DefaultListLimit = 100

// NoLimit asks the store for every matching event.
const NoLimit = -1

// Filter narrows an event listing. Nil pointers and empty strings mean "any".
type Filter struct {
	Kind     Kind
	DeviceID string
	From     *time.Time
	To       *time.Time
	IsRead   *bool
	// Limit caps the result; 0 means DefaultListLimit and a negative value means no cap.
	Limit int
}

// EffectiveLimit resolves Limit to the number of rows to return, or 0 for unlimited.
func (f Filter) EffectiveLimit() int {
	switch {
	case f.Limit == 0:
		return DefaultListLimit
	case f.Limit < 0:
		return 0
	}
	return f.Limit
}

// Matches reports whether e satisfies every condition of f.
func (f Filter) Matches(e *Event) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.DeviceID != "" && e.DeviceID != f.DeviceID {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.OccurredAt.After(*f.To) {
		return false
	}
	if f.IsRead != nil && e.IsRead != *f.IsRead {
		return false
	}
	return true
}

// DailyActivity is one calendar-day bucket of the activity timeline.
type DailyActivity struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
	Kinds []Kind `json:"kinds"`
}
