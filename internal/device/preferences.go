// Package device keeps per-device flags that must survive app restarts.
package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bridgeus/internal/cache"
	"bridgeus/internal/store"

	"go.uber.org/zap"
)

// ErrMissingDeviceID is returned when no device id is supplied
var ErrMissingDeviceID = errors.New("device id is required")

const (
	// CollectionDevicePreferences holds one document per device
	CollectionDevicePreferences = "devicePreferences"

	onboardingKeyPrefix = "device:onboarding:"
	fieldOnboarding     = "onboardingCompleted"

	// cached reads only; the store is the source of truth
	cacheTTL = 10 * time.Minute
)

// Preferences stores device flags in the document store. The cache only
// fronts reads, so an evicted or expired entry falls back to the store.
type Preferences struct {
	store  store.Store
	cache  cache.Cache
	logger *zap.Logger
}

func NewPreferences(s store.Store, c cache.Cache, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preferences{store: s, cache: c, logger: logger}
}

// OnboardingCompleted reports whether the walkthrough was finished on deviceID
func (p *Preferences) OnboardingCompleted(ctx context.Context, deviceID string) (bool, error) {
	key, err := onboardingKey(deviceID)
	if err != nil {
		return false, err
	}
	if p.cache != nil {
		if v, ok, err := p.cache.Get(ctx, key); err == nil && ok {
			if done, perr := strconv.ParseBool(v); perr == nil {
				return done, nil
			}
		}
	}

	doc, err := p.store.Get(ctx, CollectionDevicePreferences, strings.TrimSpace(deviceID))
	switch {
	case errors.Is(err, store.ErrNotFound):
		p.remember(ctx, key, false)
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to read onboarding flag: %w", err)
	}
	done, _ := doc.Data[fieldOnboarding].(bool)
	p.remember(ctx, key, done)
	return done, nil
}

// SetOnboardingCompleted persists the flag. Passing false clears it.
func (p *Preferences) SetOnboardingCompleted(ctx context.Context, deviceID string, completed bool) error {
	key, err := onboardingKey(deviceID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(deviceID)
	if !completed {
		err = p.store.Delete(ctx, CollectionDevicePreferences, id)
		if errors.Is(err, store.ErrNotFound) {
			err = nil
		}
	} else {
		err = p.store.Set(ctx, CollectionDevicePreferences, id, map[string]interface{}{
			fieldOnboarding: true,
			"updatedAt":     store.ServerTimestamp(),
		})
	}
	if err != nil {
		p.logger.Error("Failed to store onboarding flag",
			zap.String("device_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("failed to store onboarding flag: %w", err)
	}
	p.remember(ctx, key, completed)
	return nil
}

func (p *Preferences) remember(ctx context.Context, key string, done bool) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, key, strconv.FormatBool(done), cacheTTL); err != nil {
		p.logger.Debug("Failed to cache onboarding flag", zap.String("key", key), zap.Error(err))
	}
}

func onboardingKey(deviceID string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	return onboardingKeyPrefix + deviceID, nil
}
