package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "lccshelf.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/lccshelf"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// homeDir and workDir override the user's home and the current
	// directory when set.
	homeDir string
	workDir string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/lccshelf/config.yaml)
// 3. Project config (lccshelf.yaml in current or parent directories)
//
// Relative paths in the project config are resolved against the
// directory holding it.
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load user config
	userConfigPath := l.userConfigPath()
	if userConfigPath != "" {
		var userConfig Config
		if err := decodeFile(userConfigPath, &userConfig); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(&userConfig)
		} else if _, statErr := os.Stat(userConfigPath); !os.IsNotExist(statErr) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	// Load project config
	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		var projectConfig Config
		if err := decodeFile(projectConfigPath, &projectConfig); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			projectConfig.resolvePaths(filepath.Dir(projectConfigPath))
			config.Merge(&projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFile loads an explicit config file over the defaults, resolving its
// relative paths against the file's directory.
func (l *Loader) LoadFile(path string) (*Config, error) {
	var fileConfig Config
	if err := decodeFile(path, &fileConfig); err != nil {
		return nil, err
	}
	fileConfig.resolvePaths(filepath.Dir(path))

	config := DefaultConfig()
	config.Merge(&fileConfig)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	l.logger.Debug("Loaded config", slog.String("path", path))
	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	// Check if it already exists
	if _, err := os.Stat(userConfigPath); err == nil {
		return nil // Already exists
	}

	// Create default config
	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for lccshelf.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	return ""
}
