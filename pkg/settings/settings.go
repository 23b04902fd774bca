// Package settings provides user-level configuration for murmur.
// Preferences are stored in ~/.config/murmur/settings.yaml; the API key is
// stored in the OS credential vault and never written to the file.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/99designs/keyring"
	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/murmur-app/murmur/pkg/paths"
)

const (
	serviceName = "murmur"
	keyringKey  = "api_key"
)

// Recognized setting keys. Writes to any other key are silently ignored and
// reads return unset.
const (
	KeyTheme               = "theme"
	KeySoundEnabled        = "soundEnabled"
	KeyFirstLaunchComplete = "firstLaunchComplete"
	KeyHotkey              = "hotkey"
)

// Settings is the flat bag of user preferences.
type Settings struct {
	Theme               string `yaml:"theme" json:"theme"`
	SoundEnabled        bool   `yaml:"sound_enabled" json:"soundEnabled"`
	FirstLaunchComplete bool   `yaml:"first_launch_complete" json:"firstLaunchComplete"`
	Hotkey              string `yaml:"hotkey" json:"hotkey"`
}

func defaultSettings() Settings {
	return Settings{
		Theme:        "light",
		SoundEnabled: true,
		Hotkey:       "Super+J",
	}
}

// Service owns the settings file and the credential vault entry.
type Service struct {
	mu       sync.Mutex
	path     string
	settings Settings
	ring     keyring.Keyring
}

// Open loads the settings from the default location and connects to the OS
// credential vault.
func Open() (*Service, error) {
	ring, err := keyring.Open(keyring.Config{ServiceName: serviceName})
	if err != nil {
		return nil, fmt.Errorf("opening credential vault: %w", err)
	}
	return NewService(paths.GetSettingsPath(), ring)
}

// NewService loads settings from path, falling back to defaults when the
// file does not exist or cannot be parsed. The keyring is used only for the
// API key.
func NewService(path string, ring keyring.Keyring) (*Service, error) {
	s := &Service{
		path:     path,
		settings: defaultSettings(),
		ring:     ring,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run, keep defaults
	case err != nil:
		return nil, fmt.Errorf("reading settings file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &s.settings); err != nil {
			slog.Warn("Settings file is corrupt, using defaults", "path", path, "error", err)
			s.settings = defaultSettings()
		}
	}

	return s, nil
}

// save writes the settings file atomically so a crash mid-write never leaves
// a truncated file behind.
func (s *Service) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

// All returns a copy of the current settings.
func (s *Service) All() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Get returns the value of a recognized key, or ok=false for unknown keys.
func (s *Service) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case KeyTheme:
		return s.settings.Theme, true
	case KeySoundEnabled:
		return s.settings.SoundEnabled, true
	case KeyFirstLaunchComplete:
		return s.settings.FirstLaunchComplete, true
	case KeyHotkey:
		return s.settings.Hotkey, true
	default:
		return nil, false
	}
}

// Set updates a recognized key and persists the file. Unknown keys and
// values of the wrong type are silently ignored.
func (s *Service) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case KeyTheme:
		if v, ok := value.(string); ok {
			s.settings.Theme = v
		}
	case KeySoundEnabled:
		if v, ok := value.(bool); ok {
			s.settings.SoundEnabled = v
		}
	case KeyFirstLaunchComplete:
		if v, ok := value.(bool); ok {
			s.settings.FirstLaunchComplete = v
		}
	case KeyHotkey:
		if v, ok := value.(string); ok {
			s.settings.Hotkey = v
		}
	}

	return s.save()
}

// APIKey returns the stored API key from the credential vault. A missing
// entry is reported as ok=false, not an error.
func (s *Service) APIKey() (string, bool, error) {
	item, err := s.ring.Get(keyringKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading API key from vault: %w", err)
	}
	return string(item.Data), true, nil
}

// SetAPIKey stores the API key in the credential vault.
func (s *Service) SetAPIKey(key string) error {
	err := s.ring.Set(keyring.Item{
		Key:   keyringKey,
		Label: "murmur API key",
		Data:  []byte(key),
	})
	if err != nil {
		return fmt.Errorf("storing API key in vault: %w", err)
	}
	return nil
}

// ClearAPIKey removes the API key from the vault. Removing a key that was
// never stored is not an error.
func (s *Service) ClearAPIKey() error {
	err := s.ring.Remove(keyringKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing API key from vault: %w", err)
	}
	return nil
}

// IsFirstLaunch reports whether setup has not been completed yet.
func (s *Service) IsFirstLaunch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.settings.FirstLaunchComplete
}

// CompleteSetup marks the first-launch flow as done.
func (s *Service) CompleteSetup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.FirstLaunchComplete = true
	return s.save()
}

// Reset restores defaults and clears the stored API key.
func (s *Service) Reset() error {
	s.mu.Lock()
	s.settings = defaultSettings()
	err := s.save()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.ClearAPIKey()
}
