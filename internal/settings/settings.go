// Package settings supplies the operator-tunable ingestion settings. The
// pipeline takes one snapshot per alarm so an edit never applies halfway
// through an ingestion.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the values an operator may change at runtime.
type Settings struct {
	ActivationGroups       []string `yaml:"activation_groups" json:"activation_groups"`
	DisplayDurationMinutes int      `yaml:"display_duration_minutes" json:"display_duration_minutes"`
}

// normalized uppercases and trims the group list and clamps the display
// duration to at least one minute.
func (s Settings) normalized() Settings {
	var groups []string
	for _, g := range s.ActivationGroups {
		if g = strings.ToUpper(strings.TrimSpace(g)); g != "" {
			groups = append(groups, g)
		}
	}
	s.ActivationGroups = groups
	if s.DisplayDurationMinutes < 1 {
		s.DisplayDurationMinutes = 1
	}
	return s
}

// DisplayDuration returns how long an alarm stays on the dashboard.
func (s Settings) DisplayDuration() time.Duration {
	return time.Duration(max(1, s.DisplayDurationMinutes)) * time.Minute
}

// Provider hands out the current settings.
type Provider interface {
	Snapshot() Settings
}

// Static always returns the same settings.
type Static struct {
	settings Settings
}

// NewStatic returns a Provider for fixed settings.
func NewStatic(s Settings) *Static {
	return &Static{settings: s.normalized()}
}

func (p *Static) Snapshot() Settings {
	return p.settings.clone()
}

// FileProvider serves settings from a YAML file and re-reads it whenever its
// modification time changes. Until the file exists, or while it fails to
// parse, the last good settings (initially the defaults) are served.
type FileProvider struct {
	path     string
	logger   *slog.Logger
	mu       sync.Mutex
	current  Settings
	modTime  time.Time
	size     int64
	lastFail time.Time
}

// NewFileProvider creates a FileProvider with defaults for values the file omits.
func NewFileProvider(path string, defaults Settings, logger *slog.Logger) *FileProvider {
	p := &FileProvider{
		path:    path,
		logger:  logger,
		current: defaults.normalized(),
	}
	p.refresh()
	return p
}

// Snapshot returns the current settings, reloading the file if it changed.
func (p *FileProvider) Snapshot() Settings {
	p.refresh()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.clone()
}

func (p *FileProvider) refresh() {
	info, err := os.Stat(p.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("stat settings file failed", "path", p.path, "error", err)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if info.ModTime().Equal(p.modTime) && info.Size() == p.size {
		return
	}
	if info.ModTime().Equal(p.lastFail) {
		return
	}

	next, err := readFile(p.path, p.current)
	if err != nil {
		p.lastFail = info.ModTime()
		p.logger.Warn("settings file invalid, keeping previous settings", "path", p.path, "error", err)
		return
	}

	p.current = next
	p.modTime = info.ModTime()
	p.size = info.Size()
	p.lastFail = time.Time{}
	p.logger.Info("settings loaded",
		"path", p.path,
		"activation_groups", next.ActivationGroups,
		"display_duration_minutes", next.DisplayDurationMinutes,
	)
}

// readFile decodes the YAML file over base so omitted keys keep their value.
func readFile(path string, base Settings) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	out := base.clone()
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return out.normalized(), nil
}

// Load reads the settings file over defaults. A missing file yields the
// defaults.
func Load(path string, defaults Settings) (Settings, error) {
	s, err := readFile(path, defaults.normalized())
	if errors.Is(err, fs.ErrNotExist) {
		return defaults.normalized(), nil
	}
	return s, err
}

// Save writes settings to path as YAML. The file is replaced by rename so a
// running FileProvider never reads a partial write.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s.normalized())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s Settings) clone() Settings {
	if s.ActivationGroups != nil {
		s.ActivationGroups = append([]string(nil), s.ActivationGroups...)
	}
	return s
}
