package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bassista/docsweep/internal/logger"
)

// ServerConfig holds the HTTP control API settings.
type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// SweepConfig holds the auto-save settings.
type SweepConfig struct {
	// IdleInterval is the quiet period before a sweep fires.
	IdleInterval time.Duration
	// RosterPath is the JSON file the tracked-document roster persists to.
	RosterPath string
	// RosterPersistInterval is how often a changed roster is flushed.
	RosterPersistInterval time.Duration
	// SuppressFileModePrompts silences file-mode conversion prompts during saves.
	SuppressFileModePrompts bool
	// SuppressLockPrompts silences file-lock prompts during saves.
	SuppressLockPrompts bool
}

// MiscConfig holds everything else.
type MiscConfig struct {
	GinMode  string
	LogLevel string
}

// Config is the full application configuration.
type Config struct {
	Server ServerConfig
	Sweep  SweepConfig
	Misc   MiscConfig
}

// LoadConfig reads config.yaml from DOCSWEEP_CONFIG_PATH (default ./config),
// applies DOCSWEEP_-prefixed environment overrides and validates the result.
// Running without a config file is supported: defaults cover everything.
func LoadConfig() (*Config, error) {
	confPath := getEnvOrDefault("DOCSWEEP_CONFIG_PATH", "./config")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confPath)

	// Defaults to allow running without a config file
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.request_timeout", time.Second)
	v.SetDefault("server.cors_allowed_origins", "*")
	v.SetDefault("sweep.idle_interval", 10*time.Second)
	v.SetDefault("sweep.roster_path", "./data/roster.json")
	v.SetDefault("sweep.roster_persist_interval", 30*time.Second)
	v.SetDefault("sweep.suppress_file_mode_prompts", true)
	v.SetDefault("sweep.suppress_lock_prompts", true)
	v.SetDefault("misc.gin_mode", "release")
	v.SetDefault("misc.log_level", "info")

	// Environment variables like DOCSWEEP_SWEEP_IDLE_INTERVAL override everything
	v.AutomaticEnv()
	v.SetEnvPrefix("DOCSWEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.WithComponent("config").Info("no config file found, using defaults and env vars")
		} else {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               v.GetInt("server.port"),
			ReadTimeout:        v.GetDuration("server.read_timeout"),
			WriteTimeout:       v.GetDuration("server.write_timeout"),
			IdleTimeout:        v.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     v.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: v.GetString("server.cors_allowed_origins"),
		},
		Sweep: SweepConfig{
			IdleInterval:            v.GetDuration("sweep.idle_interval"),
			RosterPath:              v.GetString("sweep.roster_path"),
			RosterPersistInterval:   v.GetDuration("sweep.roster_persist_interval"),
			SuppressFileModePrompts: v.GetBool("sweep.suppress_file_mode_prompts"),
			SuppressLockPrompts:     v.GetBool("sweep.suppress_lock_prompts"),
		},
		Misc: MiscConfig{
			GinMode:  v.GetString("misc.gin_mode"),
			LogLevel: v.GetString("misc.log_level"),
		},
	}

	// Conventional PORT override for container platforms.
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Sweep.IdleInterval <= 0 {
		return errors.New("sweep idle interval must be positive")
	}
	if c.Sweep.RosterPath == "" {
		return errors.New("roster path is required")
	}
	if c.Sweep.RosterPersistInterval <= 0 {
		return errors.New("roster persist interval must be positive")
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
