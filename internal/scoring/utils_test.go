package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/getbeton/accountpulse/internal/config"
)

func TestRecencyDecay_FreshSignalIsFull(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	now := time.Now()

	decay := RecencyDecay(now, now, cfg)
	assert.Equal(t, 1.0, decay, "zero-age signal should carry full weight")
}

func TestRecencyDecay_HalfLife(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	cfg.RecencyDecayDays = 30
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ts := now.AddDate(0, 0, -30)

	decay := RecencyDecay(ts, now, cfg)
	assert.InDelta(t, 0.5, decay, 1e-9, "decay at one half-life should be exactly 0.5")
}

func TestRecencyDecay_BoundedAndMonotonic(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	prev := 1.1
	for ageDays := 0; ageDays <= 365; ageDays += 7 {
		decay := RecencyDecay(now.AddDate(0, 0, -ageDays), now, cfg)
		assert.GreaterOrEqual(t, decay, 0.0)
		assert.LessOrEqual(t, decay, 1.0)
		assert.LessOrEqual(t, decay, prev, "decay must not increase with age")
		prev = decay
	}
}

func TestRecencyDecay_FutureTimestampClampsToFull(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	now := time.Now()

	decay := RecencyDecay(now.Add(48*time.Hour), now, cfg)
	assert.Equal(t, 1.0, decay)
}

func TestFitMultiplier_Bands(t *testing.T) {
	cfg := config.DefaultScoringConfig()

	tests := []struct {
		name string
		fit  float64
		want float64
	}{
		{"icp match", 0.95, cfg.FitMultipliers.ICPMatch},
		{"icp lower boundary inclusive", 0.8, cfg.FitMultipliers.ICPMatch},
		{"near icp", 0.65, cfg.FitMultipliers.NearICP},
		{"near icp lower boundary inclusive", 0.5, cfg.FitMultipliers.NearICP},
		{"poor fit", 0.49, cfg.FitMultipliers.PoorFit},
		{"zero fit", 0.0, cfg.FitMultipliers.PoorFit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FitMultiplier(tt.fit, cfg))
		})
	}
}

func TestClamp_Bounds(t *testing.T) {
	cfg := config.DefaultScoringConfig()

	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{55.5, 55.5},
		{100, 100},
		{250, 100},
		{math.Inf(1), 100},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in, cfg))
	}
}

func TestNormalize_MidpointAndMonotonic(t *testing.T) {
	cfg := config.DefaultScoringConfig()

	assert.Equal(t, 50.0, Normalize(0, cfg), "zero raw input should land on the midpoint")

	prev := math.Inf(-1)
	for raw := -500.0; raw <= 500.0; raw += 10 {
		got := Normalize(raw, cfg)
		assert.GreaterOrEqual(t, got, cfg.ScaleMin)
		assert.LessOrEqual(t, got, cfg.ScaleMax)
		assert.GreaterOrEqual(t, got, prev, "normalize must be non-decreasing in raw")
		prev = got
	}
}

func TestNormalize_SaturatingExtremes(t *testing.T) {
	cfg := config.DefaultScoringConfig()

	assert.InDelta(t, 62.3, Normalize(25, cfg), 0.1)
	assert.Greater(t, 100.0, Normalize(200, cfg), "tanh should saturate short of the bound")
	assert.Less(t, 0.0, Normalize(-200, cfg))
}

func TestPercentageChange(t *testing.T) {
	assert.Equal(t, 1.0, PercentageChange(0, 5), "growth from zero base is 100%")
	assert.Equal(t, 0.0, PercentageChange(0, 0))
	assert.Equal(t, -0.5, PercentageChange(100, 50))
	assert.Equal(t, 0.25, PercentageChange(400, 500))
}

func TestIsDirectorLevel(t *testing.T) {
	tests := []struct {
		title string
		want  bool
	}{
		{"VP of Sales", true},
		{"vice president, engineering", true},
		{"Head of Growth", true},
		{"Chief Revenue Officer", true},
		{"CTO", true},
		{"Senior Director of Product", true},
		{"SVP Marketing", true},
		{"Software Engineer", false},
		{"Account Manager", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDirectorLevel(tt.title))
		})
	}
}

func TestSignalCutoffDate(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	cfg.SignalProcessing.MaxSignalAgeDays = 90
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), SignalCutoffDate(now, cfg))
}

func TestScoreValidUntil(t *testing.T) {
	cfg := config.DefaultScoringConfig()
	cfg.SignalProcessing.RecalculationFrequencyHours = 6
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(6*time.Hour), ScoreValidUntil(now, cfg))
}
