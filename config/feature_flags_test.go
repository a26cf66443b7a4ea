package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_SUPPORT_RELAY", "false")
	t.Setenv("FEATURE_ONBOARDING_MESSAGE_CLEANUP", "0")
	t.Setenv("FEATURE_SUPPORT_DELETION", "not-a-value")

	ff := LoadFeatureFlags()

	assert.False(t, ff.Enabled(FeatureSupportRelay, 42))
	assert.False(t, ff.Enabled(FeatureOnboardingMessageCleanup, 42))
	assert.True(t, ff.Enabled(FeatureSupportDeletion, 42), "unparsable values keep the default")
	assert.False(t, ff.Enabled("unknown.flag", 42))
}

func TestFeatureFlags_RolloutIsStablePerUser(t *testing.T) {
	t.Setenv("FEATURE_ONBOARDING_ADDITIONAL_SCHOOL", "50")
	ff := LoadFeatureFlags()

	var on int
	for id := int64(1); id <= 1000; id++ {
		first := ff.Enabled(FeatureOnboardingAdditionalSchool, id)
		assert.Equal(t, first, ff.Enabled(FeatureOnboardingAdditionalSchool, id))
		if first {
			on++
		}
	}
	assert.InDelta(t, 500, on, 150)
}

func TestFeatureFlags_OverridesAndAdmins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureSupportRelay))

	assert.False(t, ff.Enabled(FeatureSupportRelay, 7))
	assert.True(t, ff.IsEnabled(FeatureSupportRelay, &FeatureContext{UserID: 7, IsAdmin: true}))

	ff.SetUserOverride(7, FeatureSupportRelay, true)
	assert.True(t, ff.Enabled(FeatureSupportRelay, 7))
	ff.ClearUserOverrides(7)
	assert.False(t, ff.Enabled(FeatureSupportRelay, 7))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureSupportRelay, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("nope", 10), ErrFeatureNotFound)

	all := ff.GetAllFeatures()
	all[FeatureSupportRelay].Enabled = true
	assert.False(t, ff.Enabled(FeatureSupportRelay, 7), "GetAllFeatures returns copies")
}
