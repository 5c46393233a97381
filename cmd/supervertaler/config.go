package main

import (
	"os"
	"path/filepath"
)

const (
	appName        = "Supervertaler"
	appVersion     = "1.0.0"
	configEnvPrefix = "SUPERVERTALER"
)

const (
	defaultChunkSize  = 100
	defaultMode       = "translate"
	defaultProvider   = "openai"
)

// defaultProfileDir returns the directory api_keys.txt and the embedded
// database live in when the user hasn't pointed --profile-dir elsewhere.
func defaultProfileDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, ".config", "supervertaler")
}

func dbPath(profileDir string) string {
	return filepath.Join(profileDir, "supervertaler.db")
}

func apiKeysPath(profileDir string) string {
	return filepath.Join(profileDir, "api_keys.txt")
}
