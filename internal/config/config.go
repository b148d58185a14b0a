// Package config provides configuration management for stencil using Viper
// for flexible loading from files, environment variables, and command-line
// flags.
//
// The configuration system supports YAML files (.stencil.yml) and
// environment variable overrides with the STENCIL_ prefix. It covers the
// settings the rebuild engine needs (search root, output directory, static
// and data prefixes, the extra-dependency mapping) plus watch and
// dev-server options. All values are read once at startup and treated as
// immutable for the process lifetime.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Site   SiteConfig   `yaml:"site"`
	Watch  WatchConfig  `yaml:"watch"`
	Server ServerConfig `yaml:"server"`
}

type SiteConfig struct {
	SearchPath    string              `yaml:"search_path"`
	OutPath       string              `yaml:"out_path"`
	Encoding      string              `yaml:"encoding"`
	StaticPaths   []string            `yaml:"static_paths"`
	DataPaths     []string            `yaml:"data_paths"`
	ExtraDeps     map[string][]string `yaml:"extra_deps"`
	MergeContexts bool                `yaml:"merge_contexts"`
}

type WatchConfig struct {
	DebounceMs  int `yaml:"debounce_ms"`
	Concurrency int `yaml:"concurrency"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	MaxConns int    `yaml:"max_conns"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Underscore keys do not line up with mapstructure's default field
	// matching, so pull them explicitly when set.
	if viper.IsSet("site.search_path") {
		config.Site.SearchPath = viper.GetString("site.search_path")
	}
	if viper.IsSet("site.out_path") {
		config.Site.OutPath = viper.GetString("site.out_path")
	}
	if viper.IsSet("site.static_paths") {
		config.Site.StaticPaths = viper.GetStringSlice("site.static_paths")
	}
	if viper.IsSet("site.data_paths") {
		config.Site.DataPaths = viper.GetStringSlice("site.data_paths")
	}
	if viper.IsSet("site.extra_deps") {
		config.Site.ExtraDeps = viper.GetStringMapStringSlice("site.extra_deps")
	}
	if viper.IsSet("site.merge_contexts") {
		config.Site.MergeContexts = viper.GetBool("site.merge_contexts")
	}
	if viper.IsSet("watch.debounce_ms") {
		config.Watch.DebounceMs = viper.GetInt("watch.debounce_ms")
	}
	if viper.IsSet("watch.concurrency") {
		config.Watch.Concurrency = viper.GetInt("watch.concurrency")
	}
	if viper.IsSet("server.max_conns") {
		config.Server.MaxConns = viper.GetInt("server.max_conns")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Site.SearchPath == "" {
		config.Site.SearchPath = "templates"
	}
	if config.Site.OutPath == "" {
		config.Site.OutPath = "public"
	}
	if config.Site.Encoding == "" {
		config.Site.Encoding = "utf-8"
	}
	if config.Watch.DebounceMs == 0 {
		config.Watch.DebounceMs = 300
	}
	if config.Watch.Concurrency == 0 {
		config.Watch.Concurrency = 4
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.MaxConns == 0 {
		config.Server.MaxConns = 64
	}
}

// validateConfig validates configuration values for security and
// correctness.
func validateConfig(config *Config) error {
	if err := validateSiteConfig(&config.Site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	return nil
}

func validateSiteConfig(config *SiteConfig) error {
	if err := validatePath(config.SearchPath); err != nil {
		return fmt.Errorf("invalid search_path %q: %w", config.SearchPath, err)
	}
	if err := validatePath(config.OutPath); err != nil {
		return fmt.Errorf("invalid out_path %q: %w", config.OutPath, err)
	}
	for _, prefix := range append(append([]string{}, config.StaticPaths...), config.DataPaths...) {
		if err := validateRelPrefix(prefix); err != nil {
			return fmt.Errorf("invalid path prefix %q: %w", prefix, err)
		}
	}
	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.DebounceMs < 0 {
		return fmt.Errorf("debounce_ms must not be negative, got %d", config.DebounceMs)
	}
	if config.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", config.Concurrency)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}
	return nil
}

// validatePath validates a file path for security.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	return nil
}

// validateRelPrefix validates a search-root-relative prefix such as a
// static or data path.
func validateRelPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("empty prefix")
	}
	if strings.HasPrefix(prefix, "/") || filepath.IsAbs(prefix) {
		return fmt.Errorf("prefix must be relative to the search root")
	}
	if strings.Contains(prefix, "..") {
		return fmt.Errorf("prefix contains traversal")
	}
	return nil
}
