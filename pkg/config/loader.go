package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "LIBRARY"

// Load reads configuration from a file and environment variables.
// A missing config file is not an error; defaults and env vars still apply.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.apiAddress", ":8000")
	v.SetDefault("server.chatAddress", ":8080")
	v.SetDefault("server.chatPath", "/")
	v.SetDefault("server.corsOrigins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")

	v.SetDefault("auth.jwtSecret", "default-secret-key-change-me")
	v.SetDefault("auth.accessTokenTTL", "30m")
	v.SetDefault("auth.refreshTokenTTL", "168h")

	v.SetDefault("transport.readTimeout", "0s")
	v.SetDefault("transport.pingInterval", "0s")
	v.SetDefault("transport.sendBuffer", 256)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "library.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("chat.historyLimit", 50)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("invalid connection limit mode %q: want \"reject\" or \"cycle\"", c.Server.ConnectionLimit.Mode)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if !strings.HasPrefix(c.Server.ChatPath, "/") {
		return fmt.Errorf("server.chatPath %q must start with \"/\"", c.Server.ChatPath)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret must not be empty")
	}
	if c.Chat.HistoryLimit <= 0 {
		return errors.New("chat.historyLimit must be positive")
	}
	if c.Transport.SendBuffer <= 0 {
		return errors.New("transport.sendBuffer must be positive")
	}
	return nil
}
