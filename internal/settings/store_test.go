package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventdomain "cyber-monitor/backend/internal/event/domain"
	"cyber-monitor/backend/internal/settings/domain"
)

// mockSettingsRepo implements repository.Repository for tests.
type mockSettingsRepo struct {
	mu      sync.Mutex
	stored  *domain.Settings
	loadErr error
	saveErr error
	saves   int
}

func (m *mockSettingsRepo) Load(ctx context.Context, defaults domain.Settings) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return defaults, m.loadErr
	}
	if m.stored == nil {
		return defaults, nil
	}
	return *m.stored, nil
}

func (m *mockSettingsRepo) Save(ctx context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored = &s
	return nil
}

func strPtr(s string) *string { return &s }

func TestNewStore_Defaults(t *testing.T) {
	s, err := NewStore(domain.Settings{AlertRecipient: " SOC <soc@example.com> "}, nil)
	require.NoError(t, err)
	got := s.Get(context.Background())
	assert.Equal(t, "soc@example.com", got.AlertRecipient)
	assert.Equal(t, "high", got.AlertThreshold, "threshold defaults to high")
	assert.Equal(t, eventdomain.SeverityHigh, s.AlertThreshold(context.Background()))
}

func TestNewStore_InvalidDefaults(t *testing.T) {
	_, err := NewStore(domain.Settings{AlertThreshold: "urgent"}, nil)
	var ve *eventdomain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "alertThreshold", ve.Field)
}

func TestUpdate_PartialAndValidated(t *testing.T) {
	s, err := NewStore(domain.Settings{AlertRecipient: "a@example.com", AlertThreshold: "high"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	got, err := s.Update(ctx, domain.Patch{AlertThreshold: strPtr("Critical")})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.AlertRecipient, "untouched field kept")
	assert.Equal(t, "critical", got.AlertThreshold)

	_, err = s.Update(ctx, domain.Patch{AlertRecipient: strPtr("not-an-address")})
	var ve *eventdomain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "alertEmail", ve.Field)
	assert.Equal(t, "a@example.com", s.AlertRecipient(ctx), "rejected update leaves state unchanged")

	_, err = s.Update(ctx, domain.Patch{AlertThreshold: strPtr("severe")})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "critical", s.Get(ctx).AlertThreshold)
}

func TestUpdate_PersistsBeforeVisible(t *testing.T) {
	repo := &mockSettingsRepo{saveErr: errors.New("db down")}
	s, err := NewStore(domain.Settings{AlertRecipient: "a@example.com"}, repo)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Update(ctx, domain.Patch{AlertRecipient: strPtr("b@example.com")})
	var se *eventdomain.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "a@example.com", s.AlertRecipient(ctx))

	repo.saveErr = nil
	_, err = s.Update(ctx, domain.Patch{AlertRecipient: strPtr("b@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", repo.stored.AlertRecipient)
	assert.Equal(t, 2, repo.saves)
}

func TestLoadAndReload(t *testing.T) {
	repo := &mockSettingsRepo{stored: &domain.Settings{AlertRecipient: "stored@example.com", AlertThreshold: "medium"}}
	s, err := NewStore(domain.Settings{AlertRecipient: "env@example.com"}, repo)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx))
	assert.Equal(t, "stored@example.com", s.AlertRecipient(ctx))
	assert.Equal(t, eventdomain.SeverityMedium, s.AlertThreshold(ctx))

	repo.stored = &domain.Settings{AlertRecipient: "other@example.com", AlertThreshold: "low"}
	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, "other@example.com", s.AlertRecipient(ctx))

	repo.loadErr = errors.New("db down")
	require.Error(t, s.Reload(ctx))
	assert.Equal(t, "other@example.com", s.AlertRecipient(ctx), "failed reload keeps current values")
}

func TestLoad_RejectsCorruptStoredValue(t *testing.T) {
	repo := &mockSettingsRepo{stored: &domain.Settings{AlertThreshold: "panic"}}
	s, err := NewStore(domain.Settings{}, repo)
	require.NoError(t, err)
	require.Error(t, s.Load(context.Background()))
	assert.Equal(t, "high", s.Get(context.Background()).AlertThreshold)
}

func TestConcurrentUpdates(t *testing.T) {
	s, err := NewStore(domain.Settings{}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, th := range []string{"low", "medium", "high", "critical"} {
		wg.Add(1)
		go func(th string) {
			defer wg.Done()
			_, _ = s.Update(ctx, domain.Patch{AlertThreshold: &th})
			_ = s.Get(ctx)
		}(th)
	}
	wg.Wait()
	assert.True(t, eventdomain.Severity(s.Get(ctx).AlertThreshold).Valid())
}
