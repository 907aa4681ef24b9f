package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/reqcheck/packages/core/env"
	"gopkg.in/yaml.v3"
)

// Config is the reqcheck configuration file. Pointer fields distinguish
// "not set" from the zero value so Merge only overrides what was written.
type Config struct {
	BaseURL         string            `yaml:"baseUrl,omitempty"`
	APIKey          string            `yaml:"apiKey,omitempty"`
	APIKeyHeader    string            `yaml:"apiKeyHeader,omitempty"`
	ContentType     string            `yaml:"contentType,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Timeout         time.Duration     `yaml:"timeout,omitempty"`
	Parallel        *bool             `yaml:"parallel,omitempty"`
	Sequential      *bool             `yaml:"sequential,omitempty"`
	AutoIsolate     *bool             `yaml:"autoIsolate,omitempty"`
	Concurrency     int               `yaml:"concurrency,omitempty"`
	RateLimit       float64           `yaml:"rateLimit,omitempty"`
	Bail            *bool             `yaml:"bail,omitempty"`
	Verbose         *bool             `yaml:"verbose,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
	Insecure        *bool             `yaml:"insecure,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	Token           Token             `yaml:"token,omitempty"`
	// Variables feed {{name}} templates in every suite.
	Variables map[string]any `yaml:"variables,omitempty"`
}

// Token configures how the login token is asserted.
type Token struct {
	Strict *bool  `yaml:"strict,omitempty"`
	Value  string `yaml:"value,omitempty"`
	Path   string `yaml:"path,omitempty"`
}

// ErrInvalidConfig wraps decoding failures of a config file.
var ErrInvalidConfig = errors.New("invalid config file")

// ConfigFilenames are searched in order by FindAndLoadConfig.
var ConfigFilenames = []string{
	"reqcheck.yaml",
	".reqcheck.yaml",
	".reqcheckrc",
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetParallel() bool        { return getBool(c.Parallel, false) }
func (c *Config) GetSequential() bool      { return getBool(c.Sequential, false) }
func (c *Config) GetAutoIsolate() bool     { return getBool(c.AutoIsolate, false) }
func (c *Config) GetBail() bool            { return getBool(c.Bail, false) }
func (c *Config) GetVerbose() bool         { return getBool(c.Verbose, false) }
func (c *Config) GetNoColor() bool         { return getBool(c.NoColor, false) }
func (c *Config) GetInsecure() bool        { return getBool(c.Insecure, false) }
func (c *Config) GetStrictToken() bool     { return getBool(c.Token.Strict, false) }
func (c *Config) GetFollowRedirects() bool { return getBool(c.FollowRedirects, true) }

// LoadConfig loads the file at path, or searches the working directory
// when path is empty.
func LoadConfig(path string, warn env.WarnFunc) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path, warn)
	}
	return FindAndLoadConfig(".", warn)
}

// FindAndLoadConfig loads the first config file found in dir. Defaults are
// returned when none exists.
func FindAndLoadConfig(dir string, warn env.WarnFunc) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath, warn)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string, warn env.WarnFunc) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidConfig, err)
	}
	file.expand(warn)

	return DefaultConfig().Merge(&file), nil
}

// expand substitutes ${VAR} references in string values from the process
// environment.
func (c *Config) expand(warn env.WarnFunc) {
	c.BaseURL = env.Expand(c.BaseURL, warn)
	c.APIKey = env.Expand(c.APIKey, warn)
	c.Proxy = env.Expand(c.Proxy, warn)
	c.Token.Value = env.Expand(c.Token.Value, warn)
	for k, v := range c.Headers {
		c.Headers[k] = env.Expand(v, warn)
	}
	for k, v := range c.Variables {
		if s, ok := v.(string); ok {
			c.Variables[k] = env.Expand(s, warn)
		}
	}
}

// Merge returns a copy of c with every field set in other applied on top.
func (c *Config) Merge(other *Config) *Config {
	result := *c
	result.Headers = nil
	if len(c.Headers) > 0 {
		result.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
	}
	result.Variables = nil
	if len(c.Variables) > 0 {
		result.Variables = make(map[string]any, len(c.Variables))
		for k, v := range c.Variables {
			result.Variables[k] = v
		}
	}
	if other == nil {
		return &result
	}

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.APIKey != "" {
		result.APIKey = other.APIKey
	}
	if other.APIKeyHeader != "" {
		result.APIKeyHeader = other.APIKeyHeader
	}
	if other.ContentType != "" {
		result.ContentType = other.ContentType
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Token.Value != "" {
		result.Token.Value = other.Token.Value
	}
	if other.Token.Path != "" {
		result.Token.Path = other.Token.Path
	}

	// Booleans only override when explicitly set.
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Sequential != nil {
		result.Sequential = other.Sequential
	}
	if other.AutoIsolate != nil {
		result.AutoIsolate = other.AutoIsolate
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}
	if other.Insecure != nil {
		result.Insecure = other.Insecure
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.Token.Strict != nil {
		result.Token.Strict = other.Token.Strict
	}

	if len(other.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(other.Headers))
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}
	if len(other.Variables) > 0 {
		if result.Variables == nil {
			result.Variables = make(map[string]any, len(other.Variables))
		}
		for k, v := range other.Variables {
			result.Variables[k] = v
		}
	}

	return &result
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
