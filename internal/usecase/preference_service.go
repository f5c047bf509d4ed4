package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"go.uber.org/zap"

	"github.com/buywithme/assistant/internal/domain"
	"github.com/buywithme/assistant/internal/logger"
)

const (
	preferencesKey = "preferences:latest"

	// PreferenceExpiry is how long saved preferences stay valid
	PreferenceExpiry = 90 * 24 * time.Hour
)

// PreferenceConfig holds configuration for the preference service
type PreferenceConfig struct {
	Expiry time.Duration
	Logger *zap.Logger
	// Now overrides the clock in tests
	Now func() time.Time
}

// PreferenceService remembers shopper answers between sessions
type PreferenceService struct {
	cache  domain.CacheRepository
	expiry time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewPreferenceService creates a preference service
func NewPreferenceService(cache domain.CacheRepository, config PreferenceConfig) *PreferenceService {
	expiry := config.Expiry
	if expiry == 0 {
		expiry = PreferenceExpiry
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &PreferenceService{
		cache:  cache,
		expiry: expiry,
		now:    now,
		logger: logger.OrNop(config.Logger),
	}
}

// Latest returns the saved preferences, or an empty map when none are saved.
// Entries older than the expiry, or unreadable ones, are deleted.
func (s *PreferenceService) Latest(ctx context.Context) (map[string]string, error) {
	prefs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if prefs == nil || prefs.Values == nil {
		return map[string]string{}, nil
	}
	return prefs.Values, nil
}

// Update merges values into the saved preferences and stamps the update time
func (s *PreferenceService) Update(ctx context.Context, values map[string]string) (*domain.Preferences, error) {
	prefs, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if prefs == nil {
		prefs = &domain.Preferences{}
	}
	if prefs.Values == nil {
		prefs.Values = map[string]string{}
	}

	maps.Copy(prefs.Values, values)
	prefs.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	// The entry is pruned on read, so it is stored without a cache ttl
	if err := s.cache.Set(ctx, preferencesKey, raw, 0); err != nil {
		return nil, fmt.Errorf("save preferences: %w", err)
	}

	s.logger.Info("preferences saved", zap.Int("values", len(prefs.Values)))
	return prefs, nil
}

// load returns nil when nothing valid is stored
func (s *PreferenceService) load(ctx context.Context) (*domain.Preferences, error) {
	raw, err := s.cache.Get(ctx, preferencesKey)
	if errors.Is(err, domain.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil || prefs.UpdatedAt.IsZero() {
		s.logger.Warn("dropping unreadable preferences")
		return nil, s.forget(ctx)
	}

	if s.now().Sub(prefs.UpdatedAt) > s.expiry {
		s.logger.Info("saved preferences expired", zap.Time("updated_at", prefs.UpdatedAt))
		return nil, s.forget(ctx)
	}
	return &prefs, nil
}

func (s *PreferenceService) forget(ctx context.Context) error {
	if err := s.cache.Delete(ctx, preferencesKey); err != nil {
		return fmt.Errorf("delete preferences: %w", err)
	}
	return nil
}
