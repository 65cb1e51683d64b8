package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings is the persisted preference file
type Settings struct {
	ParentFolder string `yaml:"parentfolder"`
}

// Store reads and writes the settings file. A missing file means default settings.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath is $SCANFOLDERS_SETTINGS, falling back to the user config directory
func DefaultPath() string {
	if p := os.Getenv("SCANFOLDERS_SETTINGS"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "scanfolders", "settings.yaml")
}

// ParentFolder returns the default parent folder name new remote folders are created under
func (s *Store) ParentFolder() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		return "", err
	}
	return cfg.ParentFolder, nil
}

func (s *Store) SetParentFolder(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.load()
	if err != nil {
		return err
	}
	cfg.ParentFolder = strings.TrimSpace(name)
	return s.save(cfg)
}

func (s *Store) load() (Settings, error) {
	var cfg Settings
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse settings: %w", err)
	}
	return cfg, nil
}

func (s *Store) save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
