package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeFor_Bands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "M100"},
		{80, "M100"},
		{79.9, "M75"},
		{60, "M75"},
		{59.9, "M50"},
		{40, "M50"},
		{39.9, "M25"},
		{20, "M25"},
		{19.9, "M10"},
		{0, "M10"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score).Code, "score %.1f", tt.score)
	}
}

func TestGradeFor_TotalOverScale(t *testing.T) {
	// Every point on the scale classifies into exactly one band.
	for score := 0.0; score <= 100.0; score += 0.5 {
		band := GradeFor(score)
		assert.NotEmpty(t, band.Code)
		assert.GreaterOrEqual(t, score, band.Min)
	}
}

func TestGradeFor_OutOfRangeCoercesToWorst(t *testing.T) {
	assert.Equal(t, "M10", GradeFor(-10).Code)
	assert.Equal(t, "M10", GradeFor(150).Code)
	assert.Equal(t, "M10", GradeFor(100.1).Code)
	assert.Equal(t, "M10", GradeFor(math.Inf(1)).Code)
	assert.Equal(t, "M10", GradeFor(math.NaN()).Code)
}

func TestGradeBands_ContiguousNonOverlapping(t *testing.T) {
	bands := GradeBands()
	require.NotEmpty(t, bands)

	for i := 1; i < len(bands); i++ {
		assert.Equal(t, bands[i].Max, bands[i-1].Min,
			"band %s must end where %s begins", bands[i].Code, bands[i-1].Code)
	}
	assert.Equal(t, 100.0, bands[0].Max)
	assert.Equal(t, 0.0, bands[len(bands)-1].Min)
}

func TestFormatDisplay(t *testing.T) {
	disp := FormatDisplay(72.46)

	assert.Equal(t, "M75", disp.Grade)
	assert.Equal(t, "Strong", disp.Label)
	assert.Equal(t, 72.5, disp.RoundedScore)
	assert.Contains(t, disp.ShortText, "M75")
	assert.Contains(t, disp.LongText, "72.5")
}
