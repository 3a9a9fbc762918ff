package rr

import (
	"context"
	"fmt"

	"github.com/osviz/osviz/internal/source"
)

// Config is the immutable configuration of a Round-Robin run.
// Loadable from a YAML scenario file.
type Config struct {
	Quantum   int64         `yaml:"quantum" json:"quantum"`
	Speed     float64       `yaml:"speed,omitempty" json:"speed,omitempty"` // pacing hint for the driver; never affects results
	Processes []ProcessSpec `yaml:"processes" json:"processes"`
}

// DefaultConfig returns the three-process example run with quantum 2.
func DefaultConfig() Config {
	return Config{
		Quantum: 2,
		Speed:   1,
		Processes: []ProcessSpec{
			{ID: "P1", Arrival: 0, Burst: 5},
			{ID: "P2", Arrival: 2, Burst: 3},
			{ID: "P3", Arrival: 4, Burst: 4},
		},
	}
}

// Validate checks the configuration before a run starts.
// The first problem found is returned with a descriptive message.
func (c Config) Validate() error {
	if c.Quantum <= 0 {
		return fmt.Errorf("quantum must be a positive integer, got %d", c.Quantum)
	}
	if len(c.Processes) == 0 {
		return fmt.Errorf("at least one process is required")
	}
	seen := make(map[string]bool, len(c.Processes))
	for i, p := range c.Processes {
		if p.ID == "" {
			return fmt.Errorf("process %d: id must not be empty", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("process %q: duplicate id", p.ID)
		}
		seen[p.ID] = true
		if p.Arrival < 0 {
			return fmt.Errorf("process %q: arrival must be non-negative, got %d", p.ID, p.Arrival)
		}
		if p.Burst <= 0 {
			return fmt.Errorf("process %q: burst must be positive, got %d", p.ID, p.Burst)
		}
	}
	return nil
}

// LoadConfig reads a YAML scenario from location (a path or URL) and validates it.
func LoadConfig(ctx context.Context, location string) (Config, error) {
	var cfg Config
	if err := source.LoadYAML(ctx, location, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading rr scenario: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid rr scenario %s: %w", location, err)
	}
	return cfg, nil
}
