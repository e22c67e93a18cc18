package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridge-router/internal/config"
)

func TestWeightsNormalize(t *testing.T) {
	w := Weights{Cost: 2, Speed: 1, Reliability: 1, Liquidity: 0}.Normalize()
	assert.InDelta(t, 0.5, w.Cost, 1e-9)
	assert.InDelta(t, 0.25, w.Speed, 1e-9)
	assert.InDelta(t, 0.25, w.Reliability, 1e-9)
	assert.Equal(t, 0.0, w.Liquidity)
	assert.InDelta(t, 1.0, w.Cost+w.Speed+w.Reliability+w.Liquidity, 1e-9)
}

func TestWeightsNormalizeZeroTotal(t *testing.T) {
	w := Weights{}.Normalize()
	assert.Equal(t, Weights{Cost: 0.25, Speed: 0.25, Reliability: 0.25, Liquidity: 0.25}, w)
}

func TestProfilesFromConfig(t *testing.T) {
	cfg := config.RankingConfig{
		DefaultMode: "balanced",
		Profiles: map[string]config.WeightsConfig{
			"balanced":    {Cost: 0.25, Speed: 0.25, Reliability: 0.25, Liquidity: 0.25},
			"lowest-cost": {Cost: 55, Speed: 15, Reliability: 15, Liquidity: 15},
		},
	}

	profiles, err := ProfilesFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "balanced", profiles.DefaultMode())

	// Raw vectors are normalised regardless of the configured scale.
	w, exact := profiles.Resolve("lowest-cost")
	assert.True(t, exact)
	assert.InDelta(t, 0.55, w.Cost, 1e-9)
	assert.InDelta(t, 1.0, w.Cost+w.Speed+w.Reliability+w.Liquidity, 1e-9)

	// Unknown modes resolve to the default profile.
	fallback, exact := profiles.Resolve("warp-speed")
	assert.False(t, exact)
	assert.InDelta(t, 0.25, fallback.Cost, 1e-9)
}

func TestProfilesFromConfigRejectsBadInput(t *testing.T) {
	_, err := ProfilesFromConfig(config.RankingConfig{DefaultMode: "balanced"})
	assert.Error(t, err)

	_, err = ProfilesFromConfig(config.RankingConfig{
		DefaultMode: "missing",
		Profiles:    map[string]config.WeightsConfig{"balanced": {Cost: 1}},
	})
	assert.Error(t, err)

	_, err = ProfilesFromConfig(config.RankingConfig{
		DefaultMode: "balanced",
		Profiles:    map[string]config.WeightsConfig{"balanced": {Cost: -1}},
	})
	assert.Error(t, err)
}
