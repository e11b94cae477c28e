package domain

// Settings are the operator-adjustable alerting options.
type Settings struct {
	// AlertRecipient is the default destination for alert emails. May be empty.
	AlertRecipient string `json:"alertEmail"`
	// AlertThreshold is the minimum severity that triggers an automatic alert.
	AlertThreshold string `json:"alertThreshold"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	AlertRecipient *string `json:"alertEmail,omitempty"`
	AlertThreshold *string `json:"alertThreshold,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.AlertRecipient == nil && p.AlertThreshold == nil
}
