package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new Manager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update updates the configuration.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.config = config

	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"usb_root_changed", oldConfig.USB.Root != config.USB.Root,
			"bandwidth_limit_changed", oldConfig.USB.BandwidthLimit != config.USB.BandwidthLimit,
			"fat_safe_names_changed", oldConfig.USB.FATSafeNames != config.USB.FATSafeNames,
			"telegram_enabled_changed", oldConfig.Telegram.Enabled != config.Telegram.Enabled,
			"logger_enabled_changed", oldConfig.Logger.Enabled != config.Logger.Enabled,
		)
	}
}

// Save writes the current configuration to the specified file path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create config file", "path", path, "error", err)
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(m.config); err != nil {
		slog.Error("failed to encode config", "path", path, "error", err)
		return err
	}

	slog.Info("Configuration saved successfully", "path", path)
	return nil
}

// EnsureDirectories creates the job log and database directories if they don't exist.
func (m *Manager) EnsureDirectories() error {
	cfg := m.Get()

	if cfg.Jobs.Log && cfg.Jobs.LogPath != "" {
		if err := os.MkdirAll(cfg.Jobs.LogPath, 0755); err != nil {
			return fmt.Errorf("failed to create job log directory %s: %w", cfg.Jobs.LogPath, err)
		}
	}
	if dir := filepath.Dir(cfg.Database.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	slog.Debug("Required directories created/verified", "jobs", cfg.Jobs.LogPath, "database", cfg.Database.Path)
	return nil
}

// PollInterval returns the pause checkpoint interval.
func (m *Manager) PollInterval() time.Duration {
	ms := m.Get().USB.PollIntervalMs
	if ms <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// redactedCfg gets a redacted copy of the Config
func (m *Manager) redactedCfg() Config {
	var cfgCpy = *m.config
	if cfgCpy.Telegram.Token != "" {
		cfgCpy.Telegram.Token = "<redacted>"
	}
	return cfgCpy
}

// GetJSON returns the current configuration as a JSON string.
func (m *Manager) GetJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jsonBytes, err := json.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(jsonBytes)
}

func (m *Manager) GetYAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	yamlBytes, err := yaml.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}
