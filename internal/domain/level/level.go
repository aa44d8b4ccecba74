// Package level defines the immutable level catalog consumed by the session
// engine. Levels are static configuration loaded at startup; they are never
// mutated at runtime.
package level

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one timed level attempt.
type Config struct {
	Ordinal         int `yaml:"ordinal" json:"ordinal"`                  // 1-based, contiguous
	DurationMs      int `yaml:"durationMs" json:"duration_ms"`          // countdown length
	TargetScore     int `yaml:"targetScore" json:"target_score"`        // taps needed to pass
	SpawnIntervalMs int `yaml:"spawnIntervalMs" json:"spawn_interval_ms"`
	FallDurationMs  int `yaml:"fallDurationMs" json:"fall_duration_ms"` // base fall time per object
}

// Duration returns the countdown length of the level.
func (c Config) Duration() time.Duration {
	return time.Duration(c.DurationMs) * time.Millisecond
}

// SpawnInterval returns the cadence at which objects spawn.
func (c Config) SpawnInterval() time.Duration {
	return time.Duration(c.SpawnIntervalMs) * time.Millisecond
}

// FallDuration returns the base fall time before per-object jitter.
func (c Config) FallDuration() time.Duration {
	return time.Duration(c.FallDurationMs) * time.Millisecond
}

func (c Config) validate() error {
	if c.DurationMs <= 0 {
		return fmt.Errorf("level %d: durationMs must be positive, got %d", c.Ordinal, c.DurationMs)
	}
	if c.TargetScore < 0 {
		return fmt.Errorf("level %d: targetScore must be non-negative, got %d", c.Ordinal, c.TargetScore)
	}
	if c.SpawnIntervalMs <= 0 {
		return fmt.Errorf("level %d: spawnIntervalMs must be positive, got %d", c.Ordinal, c.SpawnIntervalMs)
	}
	if c.FallDurationMs <= 0 {
		return fmt.Errorf("level %d: fallDurationMs must be positive, got %d", c.Ordinal, c.FallDurationMs)
	}
	return nil
}

// Catalog is an ordered, immutable list of level configurations.
// Ordinals are contiguous starting at 1; higher ordinal is harder by
// convention, not enforcement.
type Catalog struct {
	levels []Config
}

// NewCatalog validates the given configs and returns a catalog.
func NewCatalog(levels []Config) (*Catalog, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one level")
	}
	for i, lvl := range levels {
		if lvl.Ordinal != i+1 {
			return nil, fmt.Errorf("catalog ordinals must be contiguous from 1: index %d has ordinal %d", i, lvl.Ordinal)
		}
		if err := lvl.validate(); err != nil {
			return nil, err
		}
	}
	out := make([]Config, len(levels))
	copy(out, levels)
	return &Catalog{levels: out}, nil
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read level catalog: %w", err)
	}
	var doc struct {
		Levels []Config `yaml:"levels"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse level catalog: %w", err)
	}
	return NewCatalog(doc.Levels)
}

// Default returns the compiled-in campaign catalog, used when no YAML
// file is configured.
func Default() *Catalog {
	cat, err := NewCatalog([]Config{
		{Ordinal: 1, DurationMs: 20000, TargetScore: 10, SpawnIntervalMs: 900, FallDurationMs: 3200},
		{Ordinal: 2, DurationMs: 20000, TargetScore: 14, SpawnIntervalMs: 800, FallDurationMs: 3000},
		{Ordinal: 3, DurationMs: 20000, TargetScore: 18, SpawnIntervalMs: 700, FallDurationMs: 2800},
		{Ordinal: 4, DurationMs: 25000, TargetScore: 26, SpawnIntervalMs: 600, FallDurationMs: 2600},
		{Ordinal: 5, DurationMs: 25000, TargetScore: 32, SpawnIntervalMs: 500, FallDurationMs: 2400},
		{Ordinal: 6, DurationMs: 30000, TargetScore: 45, SpawnIntervalMs: 420, FallDurationMs: 2200},
	})
	if err != nil {
		// The built-in table is verified by tests; this cannot happen at runtime.
		panic(err)
	}
	return cat
}

// Len returns the number of levels.
func (c *Catalog) Len() int {
	return len(c.levels)
}

// Get returns the level at the given 0-based index.
func (c *Catalog) Get(index int) (Config, bool) {
	if index < 0 || index >= len(c.levels) {
		return Config{}, false
	}
	return c.levels[index], true
}

// IsFinal reports whether the given index is the last level of the campaign.
func (c *Catalog) IsFinal(index int) bool {
	return index == len(c.levels)-1
}

// All returns a copy of every level, in order. Used by the read-only
// catalog API.
func (c *Catalog) All() []Config {
	out := make([]Config, len(c.levels))
	copy(out, c.levels)
	return out
}
