package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"kerbal-mod-manager/mods"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	GameDir            string `mapstructure:"GAME_DIR"`
	GameVersion        string `mapstructure:"GAME_VERSION"`
	UserAgent          string `mapstructure:"USERAGENT"`
	StabilityTolerance string `mapstructure:"STABILITY_TOLERANCE"`
	CacheDir           string `mapstructure:"CACHE_DIR"`
	KeepDownloads      bool   `mapstructure:"KEEP_DOWNLOADS"`
	RefreshBuilds      bool   `mapstructure:"REFRESH_BUILDS"`
	DatabasePath       string `mapstructure:"-"` // Not from env, derived
	ReposPath          string `mapstructure:"-"` // Not from env, derived
}

// Tolerance parses the configured stability tolerance.
func (c Config) Tolerance() (mods.Stability, error) {
	return mods.ParseStability(c.StabilityTolerance)
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)   // Path to look for the config file in
	viper.SetConfigName(".env") // Name of config file (without extension)
	viper.SetConfigType("env")  // REQUIRED if the config file does not have the extension in the name

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	// Bind environment variables automatically.
	viper.AutomaticEnv()

	for key, env := range map[string]string{
		"game_dir":            "GAME_DIR",
		"game_version":        "GAME_VERSION",
		"useragent":           "USERAGENT",
		"stability_tolerance": "STABILITY_TOLERANCE",
		"cache_dir":           "CACHE_DIR",
		"keep_downloads":      "KEEP_DOWNLOADS",
		"refresh_builds":      "REFRESH_BUILDS",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			slog.Warn("Unable to bind env var", "var", env, "error", err)
		}
	}

	// Unmarshal the config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// processConfigDefaults fills in defaults for values the user did not set.
func processConfigDefaults(config *Config) {
	if config.StabilityTolerance == "" {
		config.StabilityTolerance = "stable"
	}
	if config.UserAgent == "" {
		config.UserAgent = "kerbal-mod-manager/dev (unknown-user)"
		slog.Warn("USERAGENT not set in config or environment, using default.")
	}
	if !viper.IsSet("refresh_builds") {
		config.RefreshBuilds = true
	}
}

// validateAndEnsureDirectories checks required paths and creates the
// directory layout the rest of the program assumes.
func validateAndEnsureDirectories(config *Config) error {
	if config.GameDir == "" {
		slog.Error("GAME_DIR is not set")
		return fmt.Errorf("GAME_DIR is required")
	}
	if _, err := os.Stat(config.GameDir); os.IsNotExist(err) {
		slog.Info("Game directory does not exist, creating it", "path", config.GameDir)
		if err := os.MkdirAll(config.GameDir, 0755); err != nil {
			slog.Error("Failed to create game directory", "path", config.GameDir, "error", err)
			return err
		}
	} else if err != nil {
		slog.Error("Failed to check game directory", "path", config.GameDir, "error", err)
		return err
	}

	if config.CacheDir == "" {
		config.CacheDir = filepath.Join(config.GameDir, "ModCache")
	}

	for _, dir := range []string{
		config.CacheDir,
		filepath.Join(config.GameDir, "GameData"),
		filepath.Join(config.GameDir, "Mods"),
	} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Info("Directory does not exist, creating it", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("Failed to create directory", "path", dir, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", dir, "error", err)
			return err
		}
	}

	// Derive paths kept alongside the game installation for portability
	config.DatabasePath = filepath.Join(config.GameDir, "mods.db")
	config.ReposPath = filepath.Join(config.CacheDir, "repositories.json")
	return nil
}
