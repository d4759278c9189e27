package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "vkchat"

// AppPaths holds the default locations of the client's files
type AppPaths struct {
	ConfigDir string // directory holding config.yaml
	DataDir   string // directory holding the history database
	CacheDir  string // directory holding the contact cache
}

// DetectAppPaths resolves the default paths for the current user. XDG variables win
// over the per-OS defaults.
func DetectAppPaths() (AppPaths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppPaths{}, fmt.Errorf("failed to get home directory: %w", err)
	}

	var configBase, dataBase string
	switch runtime.GOOS {
	case "darwin":
		configBase = filepath.Join(home, "Library/Application Support")
		dataBase = configBase
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		configBase = filepath.Join(home, ".config")
		dataBase = filepath.Join(home, ".local/share")
	default:
		return AppPaths{}, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}

	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		configBase = dir
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		dataBase = dir
	}

	return AppPaths{
		ConfigDir: filepath.Join(configBase, appName),
		DataDir:   filepath.Join(dataBase, appName),
		CacheDir:  filepath.Join(home, "."+appName+"-cache"),
	}, nil
}

// ConfigPath returns the path of config.yaml
func (p AppPaths) ConfigPath() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// DatabasePath returns the path of the history database
func (p AppPaths) DatabasePath() string {
	return filepath.Join(p.DataDir, "history.db")
}

// ConfigExists checks if the config file exists
func (p AppPaths) ConfigExists() bool {
	_, err := os.Stat(p.ConfigPath())
	return err == nil
}

// DatabaseExists checks if the history database exists
func (p AppPaths) DatabaseExists() bool {
	_, err := os.Stat(p.DatabasePath())
	return err == nil
}
