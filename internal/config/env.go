package config

import (
	"os"
	"strconv"
)

// Environment variables override file values. Keys use the FUNDSYNC_ prefix.
const envPrefix = "FUNDSYNC_"

func envString(key, current string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return current
}

func envInt(key string, current int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return current
}

func envBool(key string, current bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return current
}

func (c *Config) applyEnvOverrides() {
	c.App.Env = envString("ENV", c.App.Env)
	c.Server.Host = envString("SERVER_HOST", c.Server.Host)
	c.Server.Port = envInt("SERVER_PORT", c.Server.Port)

	c.Database.Host = envString("DB_HOST", c.Database.Host)
	c.Database.Port = envInt("DB_PORT", c.Database.Port)
	c.Database.User = envString("DB_USER", c.Database.User)
	c.Database.Password = envString("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = envString("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = envString("DB_SSLMODE", c.Database.SSLMode)

	c.Redis.Enabled = envBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = envString("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = envString("REDIS_PASSWORD", c.Redis.Password)

	c.Logging.Level = envString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = envString("LOG_FORMAT", c.Logging.Format)
}
