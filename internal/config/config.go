package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the optional fastcopy configuration file.
type Config struct {
	Defaults DefaultsConfig `toml:"defaults"`
	Bench    BenchConfig    `toml:"bench"`
	Theme    ThemeConfig    `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults for the copy command.
type DefaultsConfig struct {
	Verify  *bool   `toml:"verify"`
	Hash    *string `toml:"hash"`
	Workers *int    `toml:"workers"`
}

// BenchConfig holds persistent flag defaults for the bench command.
type BenchConfig struct {
	Iterations *int    `toml:"iterations"`
	Dir        *string `toml:"dir"`
	CrossDir   *string `toml:"cross_dir"`
	Large      *string `toml:"large"`
}

// ThemeConfig holds optional color overrides.
type ThemeConfig struct {
	OK    *string `toml:"ok"`
	Fail  *string `toml:"fail"`
	Muted *string `toml:"muted"`
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "fastcopy", "config.toml")
}

// Load reads the config file from the XDG path. Returns a zero Config
// (no error) if the file does not exist. Config is always optional.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields a zero Config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	return cfg, nil
}
