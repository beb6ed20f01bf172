package config

import (
	"os"
	"path/filepath"
)

var configExtensions = []string{"yml", "yaml", "json", "toml"}

// FindLocalConfig finds local config file by walking up directories
func FindLocalConfig(dir string) string {
	for {
		for _, ext := range configExtensions {
			path := filepath.Join(dir, ".packstream."+ext)

			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

// FindGlobalConfig returns the first config file in the user's packstream config directory
func FindGlobalConfig() string {
	dir := globalConfigDir()
	if dir == "" {
		return ""
	}

	for _, ext := range configExtensions {
		path := filepath.Join(dir, "config."+ext)

		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func globalConfigDir() string {
	for _, env := range []string{"APPDATA", "XDG_CONFIG_HOME"} {
		if dir := os.Getenv(env); dir != "" {
			return filepath.Join(dir, "packstream")
		}
	}

	return ""
}
