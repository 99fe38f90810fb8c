package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudoai/billing_go_server/config"
)

func testVideoPricing() *config.VideoPricingConfig {
	// mute: round(0.2 × 2.5 / 0.25) = 2 币/秒
	// audio: round(0.3 × 2.5 / 0.25) = 3 币/秒
	return &config.VideoPricingConfig{
		CostPerSecondMute:  0.2,
		CostPerSecondAudio: 0.3,
		MarginMultiplier:   2.5,
		CoinUnitValue:      0.25,
	}
}

func TestPricingService_FixedCosts(t *testing.T) {
	service := NewPricingService(testVideoPricing())

	cases := []struct {
		kind FeatureKind
		want int
	}{
		{FeatureImageBasic, 1},
		{FeatureImageUpscale, 2},
		{FeatureImageEnhance, 3},
		{FeatureVirtualTryon, 3},
		{FeatureVirtualTryonBatch, 8},
		{FeatureJSONGeneration, 26},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			cost, err := service.Cost(Feature{Kind: tc.kind})
			require.NoError(t, err)
			assert.Equal(t, tc.want, cost)
		})
	}
}

func TestPricingService_VideoCost(t *testing.T) {
	service := NewPricingService(testVideoPricing())

	cost, err := service.Cost(VideoFeature(8, false))
	require.NoError(t, err)
	assert.Equal(t, 16, cost)

	cost, err = service.Cost(VideoFeature(8, true))
	require.NoError(t, err)
	assert.Equal(t, 24, cost)

	cost, err = service.Cost(VideoFeature(15, true))
	require.NoError(t, err)
	assert.Equal(t, 45, cost)
}

func TestPricingService_VideoInvalidDuration(t *testing.T) {
	service := NewPricingService(testVideoPricing())

	_, err := service.Cost(VideoFeature(0, true))
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestPricingService_UnknownFeature(t *testing.T) {
	service := NewPricingService(testVideoPricing())

	_, err := service.Cost(Feature{Kind: "face_swap"})
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestFeature_Key(t *testing.T) {
	assert.Equal(t, "video_8s_audio", VideoFeature(8, true).Key())
	assert.Equal(t, "video_10s_mute", VideoFeature(10, false).Key())
	assert.Equal(t, "image_basic", Feature{Kind: FeatureImageBasic}.Key())
}

func TestParseFeatureKey(t *testing.T) {
	f, err := ParseFeatureKey("image_upscale")
	require.NoError(t, err)
	assert.Equal(t, FeatureImageUpscale, f.Kind)

	f, err = ParseFeatureKey("video_8s_audio")
	require.NoError(t, err)
	assert.Equal(t, FeatureVideo, f.Kind)
	assert.Equal(t, 8, f.Seconds)
	assert.True(t, f.WithAudio)

	f, err = ParseFeatureKey("video_12s_mute")
	require.NoError(t, err)
	assert.Equal(t, 12, f.Seconds)
	assert.False(t, f.WithAudio)

	_, err = ParseFeatureKey("video_0s_audio")
	assert.ErrorIs(t, err, ErrUnknownFeature)

	_, err = ParseFeatureKey("face_swap")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestCatalogService(t *testing.T) {
	catalog := NewCatalogService(&config.PricingConfig{
		Plans: map[string]config.PlanConfig{
			"standard": {Title: "Стандарт", PriceRub: 2990, Coins: 400, DurationDays: 30},
		},
		TopupPacks: []config.TopupPackConfig{
			{Coins: 100, PriceRub: 990},
			{Coins: 500, PriceRub: 3990, BonusCoins: 50},
		},
	})

	plan, err := catalog.GetPlan("standard")
	require.NoError(t, err)
	assert.Equal(t, 400, plan.Coins)
	assert.Equal(t, 30, plan.DurationDays)

	_, err = catalog.GetPlan("ultra")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	pack, err := catalog.GetTopupPack(500)
	require.NoError(t, err)
	assert.Equal(t, 50, pack.BonusCoins)

	_, err = catalog.GetTopupPack(999)
	assert.ErrorIs(t, err, ErrPackNotFound)
}
