// Package config loads the CLI-side configuration file.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds CLI configuration from config.toml.
type Config struct {
	Broker    string   `toml:"broker"`
	Identity  string   `toml:"identity"`
	TopicBase string   `toml:"topic_base"`
	Service   string   `toml:"service"`
	Defaults  Defaults `toml:"defaults"`
}

// Defaults defines default selector values.
type Defaults struct {
	Targets []string `toml:"targets"`
}

// Load loads config.toml if present. A missing file returns an empty
// config.
func Load() (Config, error) {
	path, err := configPath()
	if err != nil {
		return Config{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "heosq", "config.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "heosq", "config.toml"), nil
}
