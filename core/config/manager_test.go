package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/breaking-byts/lifeos/core/storage"
)

func testDirs(t *testing.T) *storage.Dirs {
	t.Helper()
	root := t.TempDir()
	return &storage.Dirs{
		Config: filepath.Join(root, "config"),
		Data:   filepath.Join(root, "data"),
		Cache:  filepath.Join(root, "cache"),
		State:  filepath.Join(root, "state"),
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.Reward.ImmediateWeight = 0.9 }},
		{"zero prior precision", func(c *Config) { c.Bandit.PriorPrecision = 0 }},
		{"negative noise precision", func(c *Config) { c.Bandit.NoisePrecision = -1 }},
		{"negative beta", func(c *Config) { c.Bandit.Beta = -0.5 }},
		{"zero embed concurrency", func(c *Config) { c.Memory.EmbedConcurrency = 0 }},
		{"zero weekly practice days", func(c *Config) { c.Targets.WeeklyPracticeDays = 0 }},
		{"inverted study range", func(c *Config) { c.Targets.DailyStudyMinMinutes = 500 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManager(testDirs(t))
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg := m.Get()
	if cfg.Bandit.Beta != 2.0 {
		t.Errorf("Bandit.Beta = %v, want default 2.0", cfg.Bandit.Beta)
	}
	if cfg.Bandit.TopK != 3 {
		t.Errorf("Bandit.TopK = %v, want default 3", cfg.Bandit.TopK)
	}
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	dirs := testDirs(t)
	if err := storage.EnsureDir(dirs.Config, 0700); err != nil {
		t.Fatalf("ensure config dir: %v", err)
	}

	yaml := `
bandit:
  beta: 1.5
  top_k: 5
targets:
  weekly_study_hours: 25
`
	if err := os.WriteFile(dirs.ConfigDir("config.yaml"), []byte(yaml), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg := m.Get()
	if cfg.Bandit.Beta != 1.5 {
		t.Errorf("Bandit.Beta = %v, want 1.5", cfg.Bandit.Beta)
	}
	if cfg.Bandit.TopK != 5 {
		t.Errorf("Bandit.TopK = %v, want 5", cfg.Bandit.TopK)
	}
	if cfg.Targets.WeeklyStudyHours != 25 {
		t.Errorf("Targets.WeeklyStudyHours = %v, want 25", cfg.Targets.WeeklyStudyHours)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Reward.DailyWeight != 0.3 {
		t.Errorf("Reward.DailyWeight = %v, want default 0.3", cfg.Reward.DailyWeight)
	}
}

func TestLoadRejectsInvalidFileAndKeepsPrevious(t *testing.T) {
	dirs := testDirs(t)
	if err := storage.EnsureDir(dirs.Config, 0700); err != nil {
		t.Fatalf("ensure config dir: %v", err)
	}

	bad := "reward:\n  immediate_weight: 0.9\n"
	if err := os.WriteFile(dirs.ConfigDir("config.yaml"), []byte(bad), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err == nil {
		t.Fatal("Load() = nil error, want validation error")
	}

	// The active config must still be the defaults.
	if got := m.Get().Reward.ImmediateWeight; got != 0.2 {
		t.Errorf("Reward.ImmediateWeight after failed load = %v, want 0.2", got)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("LIFEOS_BANDIT_BETA", "0.5")
	t.Setenv("LIFEOS_BANDIT_THOMPSON", "true")
	t.Setenv("LIFEOS_BANDIT_TOP_K", "7")

	m := NewManager(testDirs(t))
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg := m.Get()
	if cfg.Bandit.Beta != 0.5 {
		t.Errorf("Bandit.Beta = %v, want 0.5", cfg.Bandit.Beta)
	}
	if !cfg.Bandit.Thompson {
		t.Error("Bandit.Thompson = false, want true")
	}
	if cfg.Bandit.TopK != 7 {
		t.Errorf("Bandit.TopK = %v, want 7", cfg.Bandit.TopK)
	}
}

func TestWatchReloadsOnFileChange(t *testing.T) {
	dirs := testDirs(t)
	if err := storage.EnsureDir(dirs.Config, 0700); err != nil {
		t.Fatalf("ensure config dir: %v", err)
	}
	if err := os.WriteFile(dirs.ConfigDir("config.yaml"), []byte("bandit:\n  beta: 1.5\n"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(dirs)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Registered after Load so only watch-triggered reloads land here.
	changed := make(chan *Config, 4)
	m.OnChange(func(c *Config) { changed <- c })

	if err := m.Watch(); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer m.Close()

	if err := os.WriteFile(dirs.ConfigDir("config.yaml"), []byte("bandit:\n  beta: 0.75\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			if cfg.Bandit.Beta == 0.75 {
				if got := m.Get().Bandit.Beta; got != 0.75 {
					t.Errorf("Get().Bandit.Beta = %v, want 0.75", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("config change never observed by watcher")
		}
	}
}

func TestOnChangeFiresOnLoad(t *testing.T) {
	m := NewManager(testDirs(t))

	var seen *Config
	m.OnChange(func(c *Config) { seen = c })

	if err := m.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if seen == nil {
		t.Fatal("OnChange callback did not fire")
	}
	if seen != m.Get() {
		t.Error("callback received a different config than Get()")
	}
}
