package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminChatID    int64         `mapstructure:"admin_chat_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	UploadsDir   string `mapstructure:"uploads_dir"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults. The token and admin chat id default to unset but are
	// registered so AutomaticEnv can populate them.
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_chat_id", 0)
	v.SetDefault("telegram.request_timeout", "30s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.dispatch_timeout", "2m")
	v.SetDefault("storage.database_path", "data/gallery.db")
	v.SetDefault("storage.uploads_dir", "data/uploads")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/gallery-tg-bot")

	// Environment variables
	v.SetEnvPrefix("GALLERY_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found is OK, use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields the process cannot run without. The bot token
// and admin chat id are deliberately not required: without them the outbound
// Telegram surface degrades to no-ops while the webhook and the HTTP API
// keep working.
func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path is required")
	}
	if c.Storage.UploadsDir == "" {
		return fmt.Errorf("storage.uploads_dir is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Telegram.RequestTimeout <= 0 {
		return fmt.Errorf("telegram.request_timeout must be positive")
	}
	return nil
}

// TelegramConfigured reports whether outbound Telegram calls can be made.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.AdminChatID != 0
}
