package scoring

import (
	"fmt"
	"math"
)

// ConcreteGrade is one discrete quality band on the 0-100 scale.
type ConcreteGrade struct {
	Code        string  `json:"code"`
	Label       string  `json:"label"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Emoji       string  `json:"emoji"`
	Color       string  `json:"color"`
	Description string  `json:"description"`
}

// gradeBands is the single source of truth for band boundaries, ordered best
// to worst. Bands are contiguous: [Min, Max) except the top band, which is
// inclusive of its Max.
var gradeBands = []ConcreteGrade{
	{Code: "M100", Label: "Excellent", Min: 80, Max: 100, Emoji: "🔥", Color: "#16a34a", Description: "Prime condition, act on it"},
	{Code: "M75", Label: "Strong", Min: 60, Max: 80, Emoji: "💪", Color: "#65a30d", Description: "Clearly above the bar"},
	{Code: "M50", Label: "Moderate", Min: 40, Max: 60, Emoji: "⚖️", Color: "#ca8a04", Description: "Watch, no action needed"},
	{Code: "M25", Label: "Weak", Min: 20, Max: 40, Emoji: "📉", Color: "#ea580c", Description: "Below the bar"},
	{Code: "M10", Label: "Poor", Min: 0, Max: 20, Emoji: "🚨", Color: "#dc2626", Description: "Bottom of the scale"},
}

// GradeBands returns a copy of the band table for display surfaces.
func GradeBands() []ConcreteGrade {
	out := make([]ConcreteGrade, len(gradeBands))
	copy(out, gradeBands)
	return out
}

// GradeFor classifies a score into its band. The caller is expected to have
// clamped the score to [0, 100]; out-of-range input coerces to the worst
// band rather than failing, which keeps grading total.
func GradeFor(score float64) ConcreteGrade {
	worst := gradeBands[len(gradeBands)-1]
	if score < worst.Min || score > gradeBands[0].Max {
		return worst
	}
	for _, band := range gradeBands {
		if score >= band.Min {
			return band
		}
	}
	return worst
}

// GradeDisplay is the presentation form of a graded score.
type GradeDisplay struct {
	Grade        string  `json:"grade"`
	Label        string  `json:"label"`
	Emoji        string  `json:"emoji"`
	Color        string  `json:"color"`
	RoundedScore float64 `json:"rounded_score"`
	ShortText    string  `json:"short_text"`
	LongText     string  `json:"long_text"`
}

// FormatDisplay composes the display form for a score, rounding to one
// decimal place. No side effects.
func FormatDisplay(score float64) GradeDisplay {
	band := GradeFor(score)
	rounded := math.Round(score*10) / 10
	return GradeDisplay{
		Grade:        band.Code,
		Label:        band.Label,
		Emoji:        band.Emoji,
		Color:        band.Color,
		RoundedScore: rounded,
		ShortText:    fmt.Sprintf("%s %s (%.1f)", band.Emoji, band.Code, rounded),
		LongText:     fmt.Sprintf("%s %s %.1f/100: %s", band.Emoji, band.Label, rounded, band.Description),
	}
}
