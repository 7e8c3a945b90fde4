package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/getbeton/accountpulse/internal/config"
)

// RecencyDecay returns the half-life weight for a signal of the given age.
// At age zero it is exactly 1.0; at age == RecencyDecayDays it is 0.5.
// Monotonically non-increasing in age, clamped to [0, 1].
func RecencyDecay(signalTimestamp, now time.Time, cfg *config.ScoringConfig) float64 {
	ageDays := math.Floor(now.Sub(signalTimestamp).Hours() / 24.0)
	if ageDays < 0 {
		ageDays = 0
	}
	decay := math.Exp(-(ageDays / cfg.RecencyDecayDays) * math.Ln2)
	if decay > 1.0 {
		return 1.0
	}
	if decay < 0.0 {
		return 0.0
	}
	return decay
}

// FitMultiplier maps an account's ICP fit score onto a weight band.
// Boundaries are inclusive on the lower edge.
func FitMultiplier(fitScore float64, cfg *config.ScoringConfig) float64 {
	switch {
	case fitScore >= 0.8:
		return cfg.FitMultipliers.ICPMatch
	case fitScore >= 0.5:
		return cfg.FitMultipliers.NearICP
	default:
		return cfg.FitMultipliers.PoorFit
	}
}

// Clamp bounds a score to the configured scale.
func Clamp(score float64, cfg *config.ScoringConfig) float64 {
	if score < cfg.ScaleMin {
		return cfg.ScaleMin
	}
	if score > cfg.ScaleMax {
		return cfg.ScaleMax
	}
	return score
}

// Normalize maps an unbounded raw weighted sum, roughly centered at zero,
// onto the display scale with saturating extremes. Normalize(0) lands on the
// scale midpoint exactly; the tanh keeps extreme raw sums from pinning at
// the bounds too eagerly.
func Normalize(raw float64, cfg *config.ScoringConfig) float64 {
	mid := (cfg.ScaleMax + cfg.ScaleMin) / 2.0
	span := cfg.ScaleMax - cfg.ScaleMin
	return Clamp(mid+(span/2.0)*math.Tanh(raw/100.0), cfg)
}

// PercentageChange returns the relative change from oldV to newV. A zero
// base maps to 1.0 for any growth and 0.0 otherwise; the branch avoids a
// division by zero and is intentional.
func PercentageChange(oldV, newV float64) float64 {
	if oldV == 0 {
		if newV > 0 {
			return 1.0
		}
		return 0.0
	}
	return (newV - oldV) / oldV
}

// directorTitles is the fixed vocabulary for seniority matching.
var directorTitles = []string{
	"director", "vp", "vice president", "head of", "chief", "c-level",
	"cto", "ceo", "cfo", "coo", "cmo", "svp", "senior vice president",
	"evp", "executive vp",
}

// IsDirectorLevel reports whether a job title indicates director level or
// above. Case-insensitive substring match; an empty title is not a match.
func IsDirectorLevel(title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, t := range directorTitles {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// SignalCutoffDate returns the oldest timestamp a signal may carry and still
// count toward the current detection window.
func SignalCutoffDate(now time.Time, cfg *config.ScoringConfig) time.Time {
	return now.AddDate(0, 0, -cfg.SignalProcessing.MaxSignalAgeDays)
}

// ScoreValidUntil returns the expiry timestamp for a freshly computed score.
func ScoreValidUntil(now time.Time, cfg *config.ScoringConfig) time.Time {
	return now.Add(time.Duration(cfg.SignalProcessing.RecalculationFrequencyHours) * time.Hour)
}
