package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmcdole/viking-faceauth/pkg/descriptor"
)

// DatabaseURLEnv overrides database_url when set
const DatabaseURLEnv = "VKAUTH_DATABASE_URL"

// Config holds the service configuration
type Config struct {
	// Core server settings
	ListenAddr   string `json:"listen_addr" yaml:"listen_addr"`
	Port         int    `json:"port" yaml:"port"`
	MaxBodyBytes int64  `json:"max_body_bytes,omitempty" yaml:"max_body_bytes,omitempty"`

	// Credential storage, exactly one of these
	UsersDir    string `json:"users_dir,omitempty" yaml:"users_dir,omitempty"`       // Directory of per-user JSON files
	DatabaseURL string `json:"database_url,omitempty" yaml:"database_url,omitempty"` // PostgreSQL connection string

	UserCacheTime int `json:"user_cache_time" yaml:"user_cache_time"` // How long to cache user data (seconds)

	// Face verification
	Threshold     float64 `json:"threshold" yaml:"threshold"`
	KeypointCount int     `json:"keypoint_count" yaml:"keypoint_count"` // Negative disables the enrollment size check

	// Optional landmark service for image input
	LandmarkURL     string `json:"landmark_url,omitempty" yaml:"landmark_url,omitempty"`
	LandmarkTimeout int    `json:"landmark_timeout,omitempty" yaml:"landmark_timeout,omitempty"` // seconds

	// Status files
	StatusDir      string `json:"status_dir,omitempty" yaml:"status_dir,omitempty"`
	StatusInterval int    `json:"status_interval,omitempty" yaml:"status_interval,omitempty"` // seconds

	// Logging settings
	AccessLogPath string `json:"access_log_path,omitempty" yaml:"access_log_path,omitempty"`
	AppLogPath    string `json:"app_log_path,omitempty" yaml:"app_log_path,omitempty"`
	LogLevel      string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	LogMaxSize    int64  `json:"log_max_size,omitempty" yaml:"log_max_size,omitempty"` // bytes
}

// LoadConfig loads configuration from a JSON or YAML file
func LoadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if url := os.Getenv(DatabaseURLEnv); url != "" {
		config.DatabaseURL = url
	}

	// Relative paths are relative to the config file
	configDir := filepath.Dir(path)
	for _, p := range []*string{&config.UsersDir, &config.StatusDir, &config.AccessLogPath, &config.AppLogPath} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}

	// Set defaults for optional settings
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.UserCacheTime == 0 {
		config.UserCacheTime = 60
	}
	if config.Threshold == 0 {
		config.Threshold = descriptor.DefaultThreshold
	}
	if config.KeypointCount == 0 {
		config.KeypointCount = descriptor.DefaultKeypointCount
	}
	if config.LandmarkTimeout == 0 {
		config.LandmarkTimeout = 30
	}
	if config.StatusInterval == 0 {
		config.StatusInterval = 30
	}

	return config.validate()
}

func (c *Config) validate() error {
	if c.UsersDir == "" && c.DatabaseURL == "" {
		return fmt.Errorf("one of users_dir or database_url is required")
	}
	if c.UsersDir != "" && c.DatabaseURL != "" {
		return fmt.Errorf("users_dir and database_url are mutually exclusive")
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// keypointCount is the enrollment size check to apply, zero when disabled
func (c *Config) keypointCount() int {
	if c.KeypointCount < 0 {
		return 0
	}
	return c.KeypointCount
}
