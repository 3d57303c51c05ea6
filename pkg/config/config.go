/*
Package config manages TOML config for tagserve.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/tagserve/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Tags   TagsConfig   `toml:"tags"`
	Index  IndexConfig  `toml:"index"`
	Search SearchConfig `toml:"search"`
}

// TagsConfig describes the vocabulary source.
type TagsConfig struct {
	SourcePath      string `toml:"source_path"`
	Delimiter       string `toml:"delimiter"`
	RebuildOnStart  bool   `toml:"rebuild_on_start"`
	Watch           bool   `toml:"watch"`
	WatchDebounceMs int    `toml:"watch_debounce_ms"`
}

// IndexConfig holds cache and artifact options.
type IndexConfig struct {
	CacheRoot   string `toml:"cache_root"`
	Compression string `toml:"compression"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	MaxResults       int  `toml:"max_results"`
	SuggestOnPrefix  bool `toml:"suggest_on_prefix"`
	RankByPopularity bool `toml:"rank_by_popularity"`
	FuzzyFallback    bool `toml:"fuzzy_fallback"`
	MaxTermLength    int  `toml:"max_term_length"`
}

// DelimiterRune returns the first rune of Delimiter, or 0 for the parser default.
func (t TagsConfig) DelimiterRune() rune {
	for _, r := range t.Delimiter {
		return r
	}
	return 0
}

// WatchDebounce converts WatchDebounceMs to a duration.
func (t TagsConfig) WatchDebounce() time.Duration {
	return time.Duration(t.WatchDebounceMs) * time.Millisecond
}

// GetConfigDir returns the first writable config directory of:
// 1. ~/.config/tagserve
// 2. ~/Library/Application Support/tagserve (macOS)
// 3. the executable's dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.ExecutableDir()
	}
	for _, dir := range []string{
		filepath.Join(homeDir, ".config", "tagserve"),
		filepath.Join(homeDir, "Library", "Application Support", "tagserve"),
	} {
		if utils.WritableDir(dir) {
			return dir, nil
		}
	}
	execDir, err := utils.ExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/tagserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Tags: TagsConfig{
			Delimiter:       ",",
			WatchDebounceMs: 300,
		},
		Index: IndexConfig{
			Compression: "zstd",
		},
		Search: SearchConfig{
			MaxResults:      20,
			SuggestOnPrefix: true,
			MaxTermLength:   128,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps whatever sections still decode and defaults the rest.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	raw, err := utils.LoadTOMLMap(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if t, ok := utils.Section(raw, "tags"); ok {
		c := &config.Tags
		utils.Set(&c.SourcePath, t, "source_path")
		utils.Set(&c.Delimiter, t, "delimiter")
		utils.Set(&c.RebuildOnStart, t, "rebuild_on_start")
		utils.Set(&c.Watch, t, "watch")
		utils.SetInt(&c.WatchDebounceMs, t, "watch_debounce_ms")
	}
	if t, ok := utils.Section(raw, "index"); ok {
		c := &config.Index
		utils.Set(&c.CacheRoot, t, "cache_root")
		utils.Set(&c.Compression, t, "compression")
	}
	if t, ok := utils.Section(raw, "search"); ok {
		c := &config.Search
		utils.SetInt(&c.MaxResults, t, "max_results")
		utils.Set(&c.SuggestOnPrefix, t, "suggest_on_prefix")
		utils.Set(&c.RankByPopularity, t, "rank_by_popularity")
		utils.Set(&c.FuzzyFallback, t, "fuzzy_fallback")
		utils.SetInt(&c.MaxTermLength, t, "max_term_length")
	}
	return config, nil
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.AbsPath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// SetSource records a new vocabulary path and saves the config.
func (c *Config) SetSource(configPath, sourcePath string) error {
	c.Tags.SourcePath = utils.AbsPath(sourcePath)
	return SaveConfig(c, configPath)
}
