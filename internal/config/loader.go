package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Provider resolves the active ScoringConfig for a workspace.
type Provider interface {
	ConfigFor(workspaceID string) *ScoringConfig
}

// File is the on-disk shape: one default config plus whole-config overrides
// per workspace. Overrides are complete configs, not patches; partial-merge
// semantics caused too many surprises to be worth keeping.
type File struct {
	Default    ScoringConfig            `yaml:"default"`
	Workspaces map[string]ScoringConfig `yaml:"workspaces"`
}

// StaticProvider serves a validated config file from memory.
type StaticProvider struct {
	def        *ScoringConfig
	workspaces map[string]*ScoringConfig
}

// NewStaticProvider wraps a single config as the answer for every workspace.
func NewStaticProvider(cfg *ScoringConfig) *StaticProvider {
	return &StaticProvider{def: cfg, workspaces: map[string]*ScoringConfig{}}
}

// Load reads and validates a scoring config file. Every workspace override
// must pass the same validation as the default; a bad override fails the
// whole load rather than falling back silently.
func Load(path string) (*StaticProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring config: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse scoring config: %w", err)
	}

	if err := file.Default.Validate(); err != nil {
		return nil, fmt.Errorf("default config invalid: %w", err)
	}

	p := &StaticProvider{
		def:        &file.Default,
		workspaces: make(map[string]*ScoringConfig, len(file.Workspaces)),
	}
	for ws, cfg := range file.Workspaces {
		cfg := cfg
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("workspace %q config invalid: %w", ws, err)
		}
		p.workspaces[ws] = &cfg
	}
	return p, nil
}

// ConfigFor returns the workspace override if present, else the default.
func (p *StaticProvider) ConfigFor(workspaceID string) *ScoringConfig {
	if cfg, ok := p.workspaces[workspaceID]; ok {
		return cfg
	}
	return p.def
}
