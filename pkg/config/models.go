package config

import "time"

type Config struct {
	Log       LogConfig
	Server    ServerConfig
	Auth      AuthConfig
	Transport TransportConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Chat      ChatConfig
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

type ServerConfig struct {
	APIAddress      string                `mapstructure:"apiAddress"`
	ChatAddress     string                `mapstructure:"chatAddress"`
	ChatPath        string                `mapstructure:"chatPath"`
	CORSOrigins     []string              `mapstructure:"corsOrigins"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwtSecret"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"`
	Mode     string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	PingInterval time.Duration `mapstructure:"pingInterval"`
	SendBuffer   int           `mapstructure:"sendBuffer"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ChatConfig struct {
	HistoryLimit int `mapstructure:"historyLimit"`
}
