package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
)

func TestNewRegistry_SizeAndSplit(t *testing.T) {
	r := NewRegistry()

	assert.Len(t, r.All(), 20)
	assert.Len(t, r.ByCategory(domain.CategoryExpansion), 12)
	assert.Len(t, r.ByCategory(domain.CategoryChurnRisk), 8)
}

func TestNewRegistry_DeterministicOrder(t *testing.T) {
	a := NewRegistry().All()
	b := NewRegistry().All()

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Name, b[i].Name)
	}
	assert.Equal(t, "usage_spike", a[0].Name, "expansion detectors register first")
	assert.Equal(t, domain.CategoryChurnRisk, a[len(a)-1].Category)
}

func TestRegistry_UniqueNamesAndConfiguredWeights(t *testing.T) {
	r := NewRegistry()
	cfg := config.DefaultScoringConfig()
	seen := map[string]bool{}

	for _, d := range r.All() {
		assert.False(t, seen[d.Name], "duplicate detector name %q", d.Name)
		seen[d.Name] = true
		assert.NotEmpty(t, d.Description)
		require.NotNil(t, d.Detect)

		// Every detector must carry weight in the default config, and the
		// config's category must agree with the registry's.
		assert.Positive(t, cfg.SignalWeight(d.Name), "detector %q has no configured weight", d.Name)
		assert.Equal(t, d.Category, cfg.SignalCategory(d.Name), "detector %q category drifted from config", d.Name)
	}

	// And the reverse: no configured signal type without a detector.
	for name := range cfg.Signals {
		assert.True(t, seen[name], "configured signal %q has no detector", name)
	}
}

func TestRegistry_ByCategoryEmptyReturnsAll(t *testing.T) {
	r := NewRegistry()
	assert.Len(t, r.ByCategory(""), 20)
}

func TestRegistry_Summary(t *testing.T) {
	summary := NewRegistry().Summary()

	require.Len(t, summary, 20)
	assert.Equal(t, "usage_spike", summary[0].Name)
	assert.Equal(t, domain.CategoryExpansion, summary[0].Category)
	assert.NotEmpty(t, summary[0].Description)
}
