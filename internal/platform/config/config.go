package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"10000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	LivenessPolicy   string        `env:"LIVENESS_POLICY" default:"idle"`
	LivenessInterval time.Duration `env:"LIVENESS_INTERVAL" default:"30s"`
	IdleTimeout      time.Duration `env:"IDLE_TIMEOUT" default:"120s"`

	TimeBroadcastInterval time.Duration `env:"TIME_BROADCAST_INTERVAL" default:"60s"`
	HeartbeatInterval     time.Duration `env:"HEARTBEAT_INTERVAL" default:"60s"`
	SelfPingURL           string        `env:"SELF_PING_URL"`
	SelfPingInterval      time.Duration `env:"SELF_PING_INTERVAL" default:"5m"`

	AllowClientSystem bool `env:"ALLOW_CLIENT_SYSTEM" default:"false"`

	MaxConnections      int     `env:"MAX_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP int     `env:"MAX_CONNECTIONS_PER_IP" default:"50"`
	ConnectionRate      float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst     int     `env:"CONNECTION_BURST" default:"20"`
	AllowedOrigins      string  `env:"ALLOWED_ORIGINS"`
	SendQueueSize       int     `env:"SEND_QUEUE_SIZE" default:"16"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// An exported but empty PORT means "use the default".
	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "10000"
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Origins returns the parsed ALLOWED_ORIGINS list; empty means any origin.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func validate(cfg *Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}

	switch cfg.LivenessPolicy {
	case "idle", "ping":
	default:
		return fmt.Errorf("LIVENESS_POLICY must be \"idle\" or \"ping\", got %q", cfg.LivenessPolicy)
	}

	if cfg.LivenessInterval <= 0 {
		return errors.New("LIVENESS_INTERVAL must be positive")
	}
	if cfg.LivenessPolicy == "idle" && cfg.IdleTimeout <= cfg.LivenessInterval {
		return fmt.Errorf("IDLE_TIMEOUT (%s) must exceed LIVENESS_INTERVAL (%s)", cfg.IdleTimeout, cfg.LivenessInterval)
	}
	if cfg.TimeBroadcastInterval <= 0 {
		return errors.New("TIME_BROADCAST_INTERVAL must be positive")
	}

	if cfg.SelfPingURL != "" {
		u, err := url.Parse(cfg.SelfPingURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("SELF_PING_URL must be an absolute http(s) URL, got %q", cfg.SelfPingURL)
		}
		if cfg.SelfPingInterval <= 0 {
			return errors.New("SELF_PING_INTERVAL must be positive when SELF_PING_URL is set")
		}
	}

	if cfg.MaxConnections < 1 || cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be positive")
	}
	if cfg.ConnectionRate <= 0 || cfg.ConnectionBurst < 1 {
		return errors.New("CONNECTION_RATE and CONNECTION_BURST must be positive")
	}
	if cfg.SendQueueSize < 1 {
		return errors.New("SEND_QUEUE_SIZE must be positive")
	}

	return nil
}
