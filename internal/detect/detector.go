// Package detect holds the signal detectors: named, categorized rules that
// inspect an account's facts and may emit a candidate signal.
package detect

import (
	"time"

	"github.com/getbeton/accountpulse/internal/config"
	"github.com/getbeton/accountpulse/internal/domain"
)

// Context bundles everything a detector may read. Detectors never write.
type Context struct {
	Account *domain.Account
	Users   []domain.User
	Config  *config.ScoringConfig
	Cutoff  time.Time // oldest timestamp inside the current detection window
	Now     time.Time
}

// Candidate is a signal a detector wants to emit. The processor assigns IDs,
// workspace scoping and dedup; detectors only describe the observation.
type Candidate struct {
	Type    string
	Value   *float64
	Details domain.SignalDetails
}

// DetectFunc inspects the context and returns a candidate, or nil when the
// pattern did not fire this cycle. A nil candidate is not an error.
type DetectFunc func(ctx *Context) (*Candidate, error)

// Detector is one registered detection rule.
type Detector struct {
	Name        string
	Category    domain.SignalCategory
	Description string
	Detect      DetectFunc
}

// Meta is the read-only introspection view of a detector.
type Meta struct {
	Name        string                `json:"name"`
	Category    domain.SignalCategory `json:"category"`
	Description string                `json:"description"`
}

// Registry is a static, ordered set of detectors. Iteration order is
// registration order so batch runs are reproducible.
type Registry struct {
	detectors []Detector
}

// NewRegistry returns the full production detector set: expansion detectors
// first, churn-risk detectors after, each group in registration order.
func NewRegistry() *Registry {
	r := &Registry{}
	r.detectors = append(r.detectors, expansionDetectors()...)
	r.detectors = append(r.detectors, churnDetectors()...)
	return r
}

// NewRegistryWith builds a registry from an explicit detector set, in the
// order given.
func NewRegistryWith(detectors ...Detector) *Registry {
	return &Registry{detectors: detectors}
}

// All returns the registered detectors in order.
func (r *Registry) All() []Detector {
	return r.detectors
}

// ByCategory returns the detectors of one category, preserving order. An
// empty category returns everything.
func (r *Registry) ByCategory(cat domain.SignalCategory) []Detector {
	if cat == "" {
		return r.detectors
	}
	var out []Detector
	for _, d := range r.detectors {
		if d.Category == cat {
			out = append(out, d)
		}
	}
	return out
}

// Summary lists detector metadata for operational visibility.
func (r *Registry) Summary() []Meta {
	out := make([]Meta, 0, len(r.detectors))
	for _, d := range r.detectors {
		out = append(out, Meta{Name: d.Name, Category: d.Category, Description: d.Description})
	}
	return out
}

func floatPtr(v float64) *float64 { return &v }
