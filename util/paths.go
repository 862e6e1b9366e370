package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetConfigDir returns the per-user config directory for mammut, creating
// it if needed.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config dir: %w", err)
	}

	dir := filepath.Join(base, Name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("could not create config dir: %w", err)
	}
	return dir, nil
}

// ResolveFilePath prefers a file in the working directory, falling back to
// the user config directory.
func ResolveFilePath(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}

	dir, err := GetConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, name)
}

// ResolveFilePathWithSubdir is like ResolveFilePath but places the file in
// a subdirectory of the config dir (e.g. ".ssh" for host keys).
func ResolveFilePathWithSubdir(subdir, name string) string {
	dir, err := GetConfigDir()
	if err != nil {
		return filepath.Join(subdir, name)
	}

	full := filepath.Join(dir, subdir)
	if err := os.MkdirAll(full, 0700); err != nil {
		return filepath.Join(dir, name)
	}
	return filepath.Join(full, name)
}
