package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/breaking-byts/lifeos/core/storage"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type Manager struct {
	configPtr unsafe.Pointer
	dirs      *storage.Dirs
	watchers  []func(*Config)
	watcherMu sync.RWMutex
	stopWatch chan struct{}
	watchOnce sync.Once
}

type Config struct {
	Bandit  BanditConfig  `yaml:"bandit"`
	Reward  RewardConfig  `yaml:"reward"`
	Memory  MemoryConfig  `yaml:"memory"`
	Targets TargetsConfig `yaml:"targets"`
}

type BanditConfig struct {
	PriorPrecision float64 `yaml:"prior_precision"`
	NoisePrecision float64 `yaml:"noise_precision"`
	Beta           float64 `yaml:"beta"`
	Thompson       bool    `yaml:"thompson"`
	TopK           int     `yaml:"top_k"`
}

type RewardConfig struct {
	ImmediateWeight float64 `yaml:"immediate_weight"`
	DailyWeight     float64 `yaml:"daily_weight"`
	WeeklyWeight    float64 `yaml:"weekly_weight"`
	MonthlyWeight   float64 `yaml:"monthly_weight"`
}

type MemoryConfig struct {
	EmbeddingDims    int    `yaml:"embedding_dims"`
	EmbeddingModel   string `yaml:"embedding_model"`
	EmbedConcurrency int    `yaml:"embed_concurrency"`
	MaxResults       int    `yaml:"max_results"`
	CacheEntries     int64  `yaml:"cache_entries"`
}

type TargetsConfig struct {
	DailyStudyMinMinutes int     `yaml:"daily_study_min_minutes"`
	DailyStudyMaxMinutes int     `yaml:"daily_study_max_minutes"`
	WeeklyStudyHours     float64 `yaml:"weekly_study_hours"`
	WeeklyPracticeDays   int     `yaml:"weekly_practice_days"`
}

func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{
		dirs:      dirs,
		stopWatch: make(chan struct{}),
	}
	cfg := DefaultConfig()
	atomic.StorePointer(&m.configPtr, unsafe.Pointer(cfg))
	return m
}

func DefaultConfig() *Config {
	return &Config{
		Bandit: BanditConfig{
			PriorPrecision: 1.0,
			NoisePrecision: 1.0,
			Beta:           2.0,
			Thompson:       false,
			TopK:           3,
		},
		Reward: RewardConfig{
			ImmediateWeight: 0.2,
			DailyWeight:     0.3,
			WeeklyWeight:    0.3,
			MonthlyWeight:   0.2,
		},
		Memory: MemoryConfig{
			EmbeddingDims:    384,
			EmbeddingModel:   "sentence-transformers/all-MiniLM-L6-v2",
			EmbedConcurrency: 2,
			MaxResults:       10,
			CacheEntries:     10000,
		},
		Targets: TargetsConfig{
			DailyStudyMinMinutes: 120,
			DailyStudyMaxMinutes: 360,
			WeeklyStudyHours:     20,
			WeeklyPracticeDays:   5,
		},
	}
}

func (m *Manager) Get() *Config {
	return (*Config)(atomic.LoadPointer(&m.configPtr))
}

func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := m.loadYAMLFile(m.path(), cfg); err != nil {
		return fmt.Errorf("user config: %w", err)
	}

	m.applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	atomic.StorePointer(&m.configPtr, unsafe.Pointer(cfg))
	m.notifyWatchers(cfg)

	return nil
}

func (m *Manager) path() string {
	return m.dirs.ConfigDir("config.yaml")
}

func (m *Manager) loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func (c *Config) Validate() error {
	sum := c.Reward.ImmediateWeight + c.Reward.DailyWeight + c.Reward.WeeklyWeight + c.Reward.MonthlyWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("reward weights must sum to 1.0, got %g", sum)
	}
	if c.Bandit.PriorPrecision <= 0 {
		return fmt.Errorf("bandit prior_precision must be positive, got %g", c.Bandit.PriorPrecision)
	}
	if c.Bandit.NoisePrecision <= 0 {
		return fmt.Errorf("bandit noise_precision must be positive, got %g", c.Bandit.NoisePrecision)
	}
	if c.Bandit.Beta < 0 {
		return fmt.Errorf("bandit beta must be non-negative, got %g", c.Bandit.Beta)
	}
	if c.Memory.EmbedConcurrency < 1 {
		return fmt.Errorf("memory embed_concurrency must be at least 1, got %d", c.Memory.EmbedConcurrency)
	}
	if c.Targets.WeeklyPracticeDays < 1 {
		return fmt.Errorf("targets weekly_practice_days must be at least 1, got %d", c.Targets.WeeklyPracticeDays)
	}
	if c.Targets.DailyStudyMinMinutes > c.Targets.DailyStudyMaxMinutes {
		return fmt.Errorf("daily study range inverted: %d > %d",
			c.Targets.DailyStudyMinMinutes, c.Targets.DailyStudyMaxMinutes)
	}
	return nil
}

func (m *Manager) applyEnvironment(cfg *Config) {
	if v := os.Getenv("LIFEOS_BANDIT_BETA"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Bandit.Beta = f
		}
	}
	if v := os.Getenv("LIFEOS_BANDIT_THOMPSON"); v != "" {
		cfg.Bandit.Thompson = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("LIFEOS_BANDIT_TOP_K"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Bandit.TopK = n
		}
	}
	if v := os.Getenv("LIFEOS_MEMORY_EMBEDDING_MODEL"); v != "" {
		cfg.Memory.EmbeddingModel = v
	}
	if v := os.Getenv("LIFEOS_MEMORY_EMBED_CONCURRENCY"); v != "" {
		if n, err := parseInt(v); err == nil {
			cfg.Memory.EmbedConcurrency = n
		}
	}
	if v := os.Getenv("LIFEOS_TARGETS_WEEKLY_STUDY_HOURS"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Targets.WeeklyStudyHours = f
		}
	}
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

// Watch reloads the config whenever the file on disk changes.
// Invalid edits are ignored and the previous config stays active.
func (m *Manager) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(m.dirs.Config); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != m.path() {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					_ = m.Load()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-m.stopWatch:
				return
			}
		}
	}()

	return nil
}

func (m *Manager) Reload() error {
	return m.Load()
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}
