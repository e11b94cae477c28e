package repository

import (
	"context"
	"sort"
	"sync"

	"cyber-monitor/backend/internal/device/domain"
)

// MemoryRepository keeps devices in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*domain.Device)}
}

func (r *MemoryRepository) Touch(ctx context.Context, s domain.Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[s.DeviceID]
	if !ok {
		d = &domain.Device{ID: s.DeviceID, FirstSeenAt: s.At, LastSeenAt: s.At}
		r.devices[s.DeviceID] = d
	}
	if s.Hostname != "" {
		d.Hostname = s.Hostname
	}
	if s.Platform != "" {
		d.Platform = s.Platform
	}
	if s.IP != "" {
		d.IP = s.IP
	}
	if s.AgentVersion != "" {
		d.AgentVersion = s.AgentVersion
	}
	if s.At.After(d.LastSeenAt) {
		d.LastSeenAt = s.At
	}
	if s.At.Before(d.FirstSeenAt) {
		d.FirstSeenAt = s.At
	}
	d.EventCount++
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (r *MemoryRepository) List(ctx context.Context, limit int) ([]*domain.Device, error) {
	r.mu.Lock()
	out := make([]*domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		c := *d
		out = append(out, &c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
