// Package storage provides platform-native directory resolution with XDG support.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

// Dirs provides platform-native directory resolution with XDG support.
type Dirs struct {
	Config string // User configuration (settings, reward weights)
	Data   string // Persistent data (activity database, memory index)
	Cache  string // Regenerable cache (embedding models, search caches)
	State  string // Runtime state (logs, locks)
}

var (
	globalDirs     *Dirs
	globalDirsOnce sync.Once
	globalDirsErr  error
)

// ResolveDirs returns platform-appropriate directories.
// Results are cached after first call.
func ResolveDirs() (*Dirs, error) {
	globalDirsOnce.Do(func() {
		globalDirs, globalDirsErr = resolveDirsImpl()
	})
	return globalDirs, globalDirsErr
}

func resolveDirsImpl() (*Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", filepath.Join(home, ".config", "lifeos")),
		Data:   resolveDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share", "lifeos")),
		Cache:  resolveDir("XDG_CACHE_HOME", filepath.Join(home, ".cache", "lifeos")),
		State:  resolveDir("XDG_STATE_HOME", filepath.Join(home, ".local", "state", "lifeos")),
	}, nil
}

func resolveDir(envVar, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return filepath.Join(dir, "lifeos")
	}
	return fallback
}

// EnsureDir creates a directory with the specified permissions if it doesn't exist.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0700
	}
	return os.MkdirAll(path, perm)
}

// ConfigDir returns the config subdirectory path.
func (d *Dirs) ConfigDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Config}, subpath...)...)
}

// DataDir returns the data subdirectory path.
func (d *Dirs) DataDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Data}, subpath...)...)
}

// CacheDir returns the cache subdirectory path.
func (d *Dirs) CacheDir(subpath ...string) string {
	return filepath.Join(append([]string{d.Cache}, subpath...)...)
}

// StateDir returns the state subdirectory path.
func (d *Dirs) StateDir(subpath ...string) string {
	return filepath.Join(append([]string{d.State}, subpath...)...)
}

// ModelDir returns the cache directory for downloaded embedding models.
func (d *Dirs) ModelDir() string {
	return d.CacheDir("models")
}

// IndexDir returns the data directory holding the keyword index.
func (d *Dirs) IndexDir() string {
	return d.DataDir("index")
}

// LogDir returns the log directory.
func (d *Dirs) LogDir() string {
	return d.StateDir("logs")
}

// EnsureAll creates all standard directories with appropriate permissions.
func (d *Dirs) EnsureAll() error {
	sensitiveDirs := []string{
		d.Config,
	}

	standardDirs := []string{
		d.Data,
		d.IndexDir(),
		d.Cache,
		d.ModelDir(),
		d.State,
		d.LogDir(),
	}

	for _, dir := range sensitiveDirs {
		if err := EnsureDir(dir, 0700); err != nil {
			return err
		}
	}

	for _, dir := range standardDirs {
		if err := EnsureDir(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}
