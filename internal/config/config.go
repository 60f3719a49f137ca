package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	mu             sync.RWMutex
	current        *Config
	configFilePath string
)

// Init initializes the configuration subsystem on the global viper instance.
// It searches for configuration files in priority order:
//  1. Directory specified by EMSOLVE_CONFIG_DIR environment variable
//  2. ~/.config/emsolve/
//  3. Current working directory (.)
//
// If no config file is found, defaults are used. If a config file exists but
// is invalid or unreadable, Init returns an error.
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("EMSOLVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setViperDefaults(viper.GetViper())

	if envPath := os.Getenv("EMSOLVE_CONFIG_DIR"); envPath != "" {
		viper.AddConfigPath(envPath)
	}

	if home := os.Getenv("HOME"); home != "" {
		viper.AddConfigPath(filepath.Join(home, ".config", "emsolve"))
	}

	viper.AddConfigPath(".")

	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file found - run on defaults.
			configFilePath = ""
			return finishInit()
		}
		return fmt.Errorf("failed to read config; %w", err)
	}

	configFilePath = viper.ConfigFileUsed()
	return finishInit()
}

// finishInit unmarshals and validates the loaded settings.
func finishInit() error {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config; %w", err)
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	mu.Lock()
	current = cfg
	mu.Unlock()

	slog.Debug("config initialized", "file", configFilePath)
	return nil
}

// Get returns the loaded configuration. Init must have been called;
// otherwise defaults are returned.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		cfg := NewDefaultConfig()
		return &cfg
	}
	return current
}

// ConfigFilePath returns the path to the loaded config file,
// or empty string if using defaults only.
func ConfigFilePath() string {
	return configFilePath
}

// Reset clears the configuration state for testing purposes.
func Reset() {
	viper.Reset()
	mu.Lock()
	current = nil
	mu.Unlock()
	configFilePath = ""
}

// ExpandPath expands a leading ~ in path to the user's home directory.
// Only expands "~" alone or "~/..." patterns. Patterns like "~user" are not
// expanded. Returns the path unchanged if home cannot be determined.
func ExpandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}

	if len(path) > 1 && path[1] != '/' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	return filepath.Join(home, path[2:])
}

// GetAllSettings returns all configuration settings as a map.
func GetAllSettings() map[string]any {
	return viper.AllSettings()
}
