package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Telegram TelegramConfig `yaml:"telegram"`
	Batch    BatchConfig    `yaml:"batch"`
	Server   ServerConfig   `yaml:"server"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelegramConfig contains the Telegram API credentials and the local state
// files tied to the session
type TelegramConfig struct {
	APIID        string `yaml:"api_id"`
	APIHash      string `yaml:"api_hash"`
	PhoneNumber  string `yaml:"phone_number"`
	SessionFile  string `yaml:"session_file"`
	SnapshotFile string `yaml:"snapshot_file"`
	DialogLimit  int    `yaml:"dialog_limit"`
}

// BatchConfig contains batch membership operation settings
type BatchConfig struct {
	DelaySeconds int `yaml:"delay_seconds"`
}

// ServerConfig contains server mode settings
type ServerConfig struct {
	Port            int    `yaml:"port"`
	ScheduleEnabled bool   `yaml:"schedule_enabled"`
	Schedule        string `yaml:"schedule"`
}

// Load loads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Substitute environment variables
	configData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(configData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return &config, nil
}

// FromEnv builds a configuration from the process environment alone, for
// setups that never write a config file.
func FromEnv() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIID:       os.Getenv("API_ID"),
			APIHash:     os.Getenv("API_HASH"),
			PhoneNumber: os.Getenv("PHONE_NUMBER"),
		},
	}
}

// FindConfigFile searches for configuration file in common locations
func FindConfigFile() (string, error) {
	locations := []string{
		"./config.yaml",
		"./config.yml",
		"~/.config/telegram-group-manager/config.yaml",
		"~/.config/telegram-group-manager/config.yml",
	}

	for _, location := range locations {
		if strings.HasPrefix(location, "~/") {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				continue
			}
			location = strings.Replace(location, "~", homeDir, 1)
		}

		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}

	return "", fmt.Errorf("no configuration file found in any of these locations: %v", locations)
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = "session_name.session"
	}

	if c.Telegram.SnapshotFile == "" {
		c.Telegram.SnapshotFile = "groups.json"
	}

	if c.Telegram.DialogLimit == 0 {
		c.Telegram.DialogLimit = 200
	}

	if c.Batch.DelaySeconds == 0 {
		c.Batch.DelaySeconds = 30
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}

	if c.Server.Schedule == "" {
		c.Server.Schedule = "0 * * * *" // Every hour by default
	}
}
