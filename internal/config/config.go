package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fundsync/internal/logging"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   logging.Config  `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// AppConfig represents application configuration.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpen         int           `yaml:"max_open"`
	MaxIdle         int           `yaml:"max_idle"`
	Timeout         time.Duration `yaml:"timeout"`
	MigrationsPath  string        `yaml:"migrations_path"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig represents Redis configuration for the rate-limit cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// SchedulerConfig holds cron expressions per pipeline kind.
// Expressions are six-field (with seconds), robfig/cron syntax.
type SchedulerConfig struct {
	HistoryCron string            `yaml:"history_cron"`
	OnlineCron  string            `yaml:"online_cron"`
	Overrides   map[string]string `yaml:"overrides"` // "<VENUE>_history" / "<VENUE>_online"
}

// HistoryCronFor returns the history cron expression for a venue code.
func (s SchedulerConfig) HistoryCronFor(code string) string {
	if expr, ok := s.Overrides[code+"_history"]; ok {
		return expr
	}
	if s.HistoryCron != "" {
		return s.HistoryCron
	}
	return "*/15 * * * * *"
}

// OnlineCronFor returns the online cron expression for a venue code.
func (s SchedulerConfig) OnlineCronFor(code string) string {
	if expr, ok := s.Overrides[code+"_online"]; ok {
		return expr
	}
	if s.OnlineCron != "" {
		return s.OnlineCron
	}
	return "*/10 * * * * *"
}

// Load loads configuration from a YAML file and applies env overrides.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "fundsync"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
