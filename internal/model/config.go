package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds the task-tracker REST settings. The token itself is
// kept in the system keyring, never in this file.
type APIConfig struct {
	// BaseURL is the root of the REST API (e.g., https://app.asana.com/api/1.0).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// RatePerSec caps outbound requests per second.
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// MailConfig describes the host webmail and the optional IMAP account
// used to apply the categorization label.
type MailConfig struct {
	// BaseURL is the host webmail origin used to resolve relative links.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	Username string `mapstructure:"username" yaml:"username"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`

	// Label is the mailbox the categorization marker copies messages into.
	Label string `mapstructure:"label" yaml:"label"`
}

// TimingConfig holds the fixed delays used by the observer and composer.
type TimingConfig struct {
	InjectDebounceMs int `mapstructure:"inject_debounce_ms" yaml:"inject_debounce_ms"`
	SearchDebounceMs int `mapstructure:"search_debounce_ms" yaml:"search_debounce_ms"`
	ExpandSettleMs   int `mapstructure:"expand_settle_ms" yaml:"expand_settle_ms"`
	AutoCloseMs      int `mapstructure:"auto_close_ms" yaml:"auto_close_ms"`
}

// InjectDebounce returns the mutation debounce delay.
func (t TimingConfig) InjectDebounce() time.Duration {
	return time.Duration(t.InjectDebounceMs) * time.Millisecond
}

// SearchDebounce returns the task-search keystroke debounce delay.
func (t TimingConfig) SearchDebounce() time.Duration {
	return time.Duration(t.SearchDebounceMs) * time.Millisecond
}

// ExpandSettle returns the wait after each expand strategy.
func (t TimingConfig) ExpandSettle() time.Duration {
	return time.Duration(t.ExpandSettleMs) * time.Millisecond
}

// AutoClose returns the delay before the composer closes itself.
func (t TimingConfig) AutoClose() time.Duration {
	return time.Duration(t.AutoCloseMs) * time.Millisecond
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Mail   MailConfig   `mapstructure:"mail" yaml:"mail"`
	Timing TimingConfig `mapstructure:"timing" yaml:"timing"`

	// ExtensionID keys the preferences record.
	ExtensionID string `mapstructure:"extension_id" yaml:"extension_id"`

	// StorePath is the SQLite database holding preferences and
	// notification links.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`

	// BridgeAddr is the listen address of the page bridge.
	BridgeAddr string `mapstructure:"bridge_addr" yaml:"bridge_addr"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// ConfigDir returns ~/.config/mailtask.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailtask")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtask/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "https://app.asana.com/api/1.0",
			RatePerSec: 5,
		},
		Mail: MailConfig{
			BaseURL:  "https://mail.google.com",
			IMAPHost: "imap.gmail.com",
			IMAPPort: "993",
			TLS:      true,
			Label:    "Tasked",
		},
		Timing: TimingConfig{
			InjectDebounceMs: 250,
			SearchDebounceMs: 300,
			ExpandSettleMs:   800,
			AutoCloseMs:      2500,
		},
		ExtensionID: "mailtask",
		StorePath:   filepath.Join(ConfigDir(), "mailtask.db"),
		BridgeAddr:  "127.0.0.1:7341",
		LogLevel:    "info",
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILTASK")
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.rate_per_sec", def.API.RatePerSec)
	v.SetDefault("mail.base_url", def.Mail.BaseURL)
	v.SetDefault("mail.imap_host", def.Mail.IMAPHost)
	v.SetDefault("mail.imap_port", def.Mail.IMAPPort)
	v.SetDefault("mail.tls", def.Mail.TLS)
	v.SetDefault("mail.label", def.Mail.Label)
	v.SetDefault("timing.inject_debounce_ms", def.Timing.InjectDebounceMs)
	v.SetDefault("timing.search_debounce_ms", def.Timing.SearchDebounceMs)
	v.SetDefault("timing.expand_settle_ms", def.Timing.ExpandSettleMs)
	v.SetDefault("timing.auto_close_ms", def.Timing.AutoCloseMs)
	v.SetDefault("extension_id", def.ExtensionID)
	v.SetDefault("store_path", def.StorePath)
	v.SetDefault("bridge_addr", def.BridgeAddr)
	v.SetDefault("log_level", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("mail", cfg.Mail)
	v.Set("timing", cfg.Timing)
	v.Set("extension_id", cfg.ExtensionID)
	v.Set("store_path", cfg.StorePath)
	v.Set("bridge_addr", cfg.BridgeAddr)
	v.Set("log_level", cfg.LogLevel)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
