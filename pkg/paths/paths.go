package paths

import (
	"os"
	"path/filepath"
)

// GetConfigDir returns the user's config directory for murmur.
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory. This is a best-effort fallback and
// not intended to be a security boundary.
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to temp directory
		return filepath.Clean(filepath.Join(os.TempDir(), ".murmur-config"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "murmur"))
}

// GetDataDir returns the user's data directory for murmur (database, logs).
//
// If the home directory cannot be determined, it falls back to a directory
// under the system temporary directory.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".murmur"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".murmur"))
}

// GetDatabasePath returns the default path of the transcription archive.
func GetDatabasePath() string {
	return filepath.Join(GetDataDir(), "murmur.db")
}

// GetSettingsPath returns the path to the settings file.
func GetSettingsPath() string {
	return filepath.Join(GetConfigDir(), "settings.yaml")
}
