package level

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	cat := Default()

	if cat.Len() == 0 {
		t.Fatalf("Expected a non-empty built-in catalog")
	}
	for i := 0; i < cat.Len(); i++ {
		cfg, ok := cat.Get(i)
		if !ok {
			t.Fatalf("Expected level at index %d", i)
		}
		if cfg.Ordinal != i+1 {
			t.Errorf("Expected ordinal %d at index %d, got %d", i+1, i, cfg.Ordinal)
		}
	}
	if !cat.IsFinal(cat.Len() - 1) {
		t.Errorf("Expected last index to be final")
	}
	if cat.IsFinal(0) {
		t.Errorf("Expected first index not to be final")
	}
}

func TestCatalogRejectsNonContiguousOrdinals(t *testing.T) {
	_, err := NewCatalog([]Config{
		{Ordinal: 1, DurationMs: 20000, TargetScore: 10, SpawnIntervalMs: 900, FallDurationMs: 3200},
		{Ordinal: 3, DurationMs: 20000, TargetScore: 14, SpawnIntervalMs: 800, FallDurationMs: 3000},
	})
	if err == nil {
		t.Errorf("Expected error for ordinals 1,3")
	}

	_, err = NewCatalog([]Config{
		{Ordinal: 2, DurationMs: 20000, TargetScore: 10, SpawnIntervalMs: 900, FallDurationMs: 3200},
	})
	if err == nil {
		t.Errorf("Expected error for catalog starting at ordinal 2")
	}
}

func TestCatalogRejectsInvalidTimings(t *testing.T) {
	cases := []Config{
		{Ordinal: 1, DurationMs: 0, TargetScore: 10, SpawnIntervalMs: 900, FallDurationMs: 3200},
		{Ordinal: 1, DurationMs: 20000, TargetScore: -1, SpawnIntervalMs: 900, FallDurationMs: 3200},
		{Ordinal: 1, DurationMs: 20000, TargetScore: 10, SpawnIntervalMs: 0, FallDurationMs: 3200},
		{Ordinal: 1, DurationMs: 20000, TargetScore: 10, SpawnIntervalMs: 900, FallDurationMs: -5},
	}
	for i, bad := range cases {
		if _, err := NewCatalog([]Config{bad}); err == nil {
			t.Errorf("Case %d: expected validation error for %+v", i, bad)
		}
	}
}

func TestCatalogRejectsEmpty(t *testing.T) {
	if _, err := NewCatalog(nil); err == nil {
		t.Errorf("Expected error for empty catalog")
	}
}

func TestGetOutOfRange(t *testing.T) {
	cat := Default()
	if _, ok := cat.Get(-1); ok {
		t.Errorf("Expected Get(-1) to report false")
	}
	if _, ok := cat.Get(cat.Len()); ok {
		t.Errorf("Expected Get(len) to report false")
	}
}

func TestDurationsConvert(t *testing.T) {
	cfg := Config{Ordinal: 1, DurationMs: 20000, TargetScore: 18, SpawnIntervalMs: 700, FallDurationMs: 2800}

	if cfg.Duration() != 20*time.Second {
		t.Errorf("Expected 20s duration, got %s", cfg.Duration())
	}
	if cfg.SpawnInterval() != 700*time.Millisecond {
		t.Errorf("Expected 700ms spawn interval, got %s", cfg.SpawnInterval())
	}
	if cfg.FallDuration() != 2800*time.Millisecond {
		t.Errorf("Expected 2800ms fall duration, got %s", cfg.FallDuration())
	}
}

func TestLoadFromYAML(t *testing.T) {
	doc := `levels:
  - ordinal: 1
    durationMs: 15000
    targetScore: 8
    spawnIntervalMs: 850
    fallDurationMs: 3000
  - ordinal: 2
    durationMs: 20000
    targetScore: 15
    spawnIntervalMs: 700
    fallDurationMs: 2800
`
	path := filepath.Join(t.TempDir(), "levels.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Fatalf("Expected 2 levels, got %d", cat.Len())
	}
	second, _ := cat.Get(1)
	if second.TargetScore != 15 || second.SpawnIntervalMs != 700 {
		t.Errorf("Unexpected second level: %+v", second)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Expected error for missing catalog file")
	}
}
