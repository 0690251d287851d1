package device

import (
	"context"
	"fmt"
	"testing"

	"bridgeus/internal/cache"
	"bridgeus/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPreferences_Onboarding(t *testing.T) {
	c := cache.NewMemoryCache(cache.DefaultConfig(), zap.NewNop())
	defer c.Close()
	prefs := NewPreferences(memory.New(zap.NewNop()), c, zap.NewNop())
	ctx := context.Background()

	done, err := prefs.OnboardingCompleted(ctx, "device-1")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, prefs.SetOnboardingCompleted(ctx, "device-1", true))

	done, err = prefs.OnboardingCompleted(ctx, "device-1")
	require.NoError(t, err)
	assert.True(t, done)

	other, err := prefs.OnboardingCompleted(ctx, "device-2")
	require.NoError(t, err)
	assert.False(t, other)

	require.NoError(t, prefs.SetOnboardingCompleted(ctx, "device-1", false))
	done, err = prefs.OnboardingCompleted(ctx, "device-1")
	require.NoError(t, err)
	assert.False(t, done)

	// clearing twice is fine
	require.NoError(t, prefs.SetOnboardingCompleted(ctx, "device-1", false))
}

func TestPreferences_SurvivesCacheEviction(t *testing.T) {
	s := memory.New(zap.NewNop())
	c := cache.NewMemoryCache(&cache.Config{MaxKeys: 2}, zap.NewNop())
	defer c.Close()
	prefs := NewPreferences(s, c, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, prefs.SetOnboardingCompleted(ctx, "device-1", true))
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("ratelimit:%d", i), "1", 0))
	}
	_, cached, err := c.Get(ctx, "device:onboarding:device-1")
	require.NoError(t, err)
	require.False(t, cached, "flag should have been evicted from the cache")

	done, err := prefs.OnboardingCompleted(ctx, "device-1")
	require.NoError(t, err)
	assert.True(t, done)

	// a restart starts with an empty cache
	restarted := NewPreferences(s, cache.NewMemoryCache(nil, nil), nil)
	done, err = restarted.OnboardingCompleted(ctx, " device-1 ")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPreferences_WorksWithoutCache(t *testing.T) {
	prefs := NewPreferences(memory.New(zap.NewNop()), nil, nil)
	ctx := context.Background()

	require.NoError(t, prefs.SetOnboardingCompleted(ctx, "device-9", true))
	done, err := prefs.OnboardingCompleted(ctx, "device-9")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPreferences_RequiresDeviceID(t *testing.T) {
	prefs := NewPreferences(memory.New(zap.NewNop()), cache.NewMemoryCache(nil, nil), nil)

	_, err := prefs.OnboardingCompleted(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingDeviceID)
	assert.ErrorIs(t, prefs.SetOnboardingCompleted(context.Background(), "", true), ErrMissingDeviceID)
}
