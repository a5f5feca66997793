package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string `env:"ENV" env-default:"local"`
	Service   string `env:"SERVICE_NAME" env-default:"coin-watchlist"`
	HTTP      HTTPConfig
	Database  DBConfig
	Redis     RedisConfig
	Security  SecConfig
	Upstream  UpstreamConfig
	Websocket WSConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

type DBConfig struct {
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName   string `env:"POSTGRES_DB" env-default:"watchlist_db"`
	SSLMode  string `env:"POSTGRES_SSLMODE" env-default:"disable"`

	MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" env-default:"20"`
	ConnectAttempts int           `env:"POSTGRES_CONNECT_ATTEMPTS" env-default:"5"`
	ConnectDelay    time.Duration `env:"POSTGRES_CONNECT_DELAY" env-default:"2s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD" env-default:""`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL" env-default:"60s"`
}

type SecConfig struct {
	SessionSecret   string        `env:"SESSION_SECRET" env-required:"true"`
	SessionTTL      time.Duration `env:"SESSION_TTL" env-default:"168h"`
	CookieName      string        `env:"SESSION_COOKIE" env-default:"session"`
	CookieSecure    bool          `env:"SESSION_COOKIE_SECURE" env-default:"false"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" env-default:"1h"`
}

type UpstreamConfig struct {
	BaseURL        string        `env:"COINGECKO_BASE_URL" env-default:"https://api.coingecko.com/api/v3"`
	APIKey         string        `env:"COINGECKO_API_KEY" env-required:"true"`
	APIKeyHeader   string        `env:"COINGECKO_API_KEY_HEADER" env-default:"x-cg-demo-api-key"`
	Timeout        time.Duration `env:"COINGECKO_TIMEOUT" env-default:"10s"`
	RPS            float64       `env:"COINGECKO_RPS" env-default:"5"`
	Burst          int           `env:"COINGECKO_BURST" env-default:"10"`
	MaxConcurrency int           `env:"COINGECKO_MAX_CONCURRENCY" env-default:"10"`
}

type WSConfig struct {
	RefreshInterval time.Duration `env:"WS_REFRESH_INTERVAL" env-default:"60s"`
}

func MustLoad() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}

	return &cfg
}
