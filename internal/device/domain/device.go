package domain

import "time"

// Device is a monitored endpoint as seen through the events it reports.
type Device struct {
	ID           string    `json:"id"`
	Hostname     string    `json:"hostname"`
	Platform     string    `json:"platform"`
	IP           string    `json:"ip"`
	AgentVersion string    `json:"agentVersion"`
	FirstSeenAt  time.Time `json:"firstSeenAt"`
	LastSeenAt   time.Time `json:"lastSeenAt"`
	EventCount   int64     `json:"eventCount"`
}

// Sighting is one observation of a device, taken from an ingested event.
// Empty descriptive fields keep the previously recorded values.
type Sighting struct {
	DeviceID     string
	Hostname     string
	Platform     string
	IP           string
	AgentVersion string
	At           time.Time
}
