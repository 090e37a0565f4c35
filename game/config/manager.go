package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/puzzlemap/game/engine"
	"github.com/wricardo/puzzlemap/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultLevelID is the level used for sessions created without a name.
const DefaultLevelID = "tutorial"

// levelExts lists the file extensions a level may use, in lookup order.
var levelExts = []string{".json", ".yaml", ".yml"}

// Manager handles level loading and caching
type Manager struct {
	configDir     string
	defaultID     string
	defaultConfig *engine.LevelConfig
	configs       map[string]*engine.LevelConfig
	logger        *zap.Logger
	mu            sync.RWMutex
}

// NewManager creates a new level manager
func NewManager(configDir string, logger *zap.Logger) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.LevelConfig),
		logger:    logger,
	}

	if err := m.loadDefaultConfig(); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	return m, nil
}

// Dir returns the directory levels are read from.
func (m *Manager) Dir() string {
	return m.configDir
}

// levelID strips a known level extension from name.
func levelID(name string) string {
	for _, ext := range levelExts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func isLevelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range levelExts {
		if ext == e {
			return true
		}
	}
	return false
}

// findLevelFile returns the path of the first existing file for id.
func (m *Manager) findLevelFile(name string) (string, error) {
	if isLevelFile(name) {
		path := filepath.Join(m.configDir, name)
		if _, err := os.Stat(path); err != nil {
			return "", ErrConfigNotFound
		}
		return path, nil
	}
	for _, ext := range levelExts {
		path := filepath.Join(m.configDir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrConfigNotFound
}

// LoadConfig loads a level by id, with or without its extension
func (m *Manager) LoadConfig(name string) (*engine.LevelConfig, error) {
	id := levelID(name)

	m.mu.RLock()
	if config, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.configs[id]; exists {
		return config, nil
	}

	path, err := m.findLevelFile(name)
	if err != nil {
		return nil, fmt.Errorf("level %q: %w", id, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := engine.DecodeLevelConfig(data, engine.FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, filepath.Base(path), err)
	}

	m.configs[id] = config
	m.logger.Debug("level loaded", zap.String("id", id), zap.String("path", path))
	return config, nil
}

// ListConfigs returns information about all available levels
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !isLevelFile(entry.Name()) {
			continue
		}

		id := levelID(entry.Name())
		if seen[id] {
			continue
		}

		config, err := m.LoadConfig(entry.Name())
		if err != nil {
			m.logger.Debug("skipping invalid level", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        config.Name,
			Description: config.Description,
			Width:       len(config.Layout[0]),
			Height:      len(config.Layout),
			EventCount:  len(config.Events),
		})
	}

	return configs, nil
}

// GetDefault returns the default level
func (m *Manager) GetDefault() *engine.LevelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default level by id
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = levelID(name)
	m.defaultConfig = config
	return nil
}

// RefreshCache drops every cached level and reloads the default
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.LevelConfig)
	m.mu.Unlock()

	return m.loadDefaultConfig()
}

// invalidate drops one cached level, reloading the default if it was it.
func (m *Manager) invalidate(id string) {
	m.mu.Lock()
	delete(m.configs, id)
	isDefault := id == m.defaultID
	m.mu.Unlock()

	if !isDefault {
		return
	}
	config, err := m.LoadConfig(id)
	if err != nil {
		m.logger.Warn("default level no longer loads, keeping previous copy", zap.String("id", id), zap.Error(err))
		return
	}
	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
}

// loadDefaultConfig loads the tutorial level, falling back to the first
// level on disk and then to the built-in tutorial.
func (m *Manager) loadDefaultConfig() error {
	id := DefaultLevelID
	config, err := m.LoadConfig(id)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr != nil || len(configs) == 0 {
			m.setDefault("", engine.DefaultLevelConfig())
			return nil
		}

		id = configs[0].ConfigID
		config, err = m.LoadConfig(configs[0].Filename)
		if err != nil {
			m.setDefault("", engine.DefaultLevelConfig())
			return nil
		}
	}

	m.setDefault(id, config)
	return nil
}

func (m *Manager) setDefault(id string, config *engine.LevelConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	m.defaultConfig = config
}

// SaveConfig validates a level and writes it to disk. Names ending in .yaml
// or .yml are written as YAML, anything else as JSON.
func (m *Manager) SaveConfig(name string, config *engine.LevelConfig) error {
	if err := engine.ValidateLevelConfig(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	filename := name
	if !isLevelFile(filename) {
		filename = name + ".json"
	}
	configPath := filepath.Join(m.configDir, filename)

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if engine.FormatForPath(filename) == "yaml" {
		if data, err = jsonToYAML(data); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[levelID(name)] = config
	m.mu.Unlock()

	return nil
}

// jsonToYAML re-encodes a JSON document so YAML keys match the JSON tags.
func jsonToYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// Watch invalidates cached levels whenever their files change and calls
// onChange with the level id. It blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(id string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create level watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(m.configDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.configDir, err)
	}
	m.logger.Info("watching levels", zap.String("dir", m.configDir))

	last := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isLevelFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < 100*time.Millisecond {
				continue
			}
			last[event.Name] = now

			id := levelID(filepath.Base(event.Name))
			m.invalidate(id)
			m.logger.Info("level changed", zap.String("id", id), zap.String("op", event.Op.String()))
			if onChange != nil {
				onChange(id)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("level watcher error", zap.Error(err))
		}
	}
}
