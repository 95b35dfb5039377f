// Package config holds the runtime settings of the meeting server.
// Values come from the environment (optionally seeded from a .env file by main).
package config

import (
	"fmt"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/pion/webrtc/v4"
)

// Config is unmarshalled from environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	DBHost     string `env:"DB_HOST,default=localhost"`
	DBPort     int    `env:"DB_PORT,default=5432"`
	DBUser     string `env:"DB_USER,default=user"`
	DBPassword string `env:"DB_PASSWORD,default=password"`
	DBName     string `env:"DB_NAME,default=meetsyncdb"`
	DBSSLMode  string `env:"DB_SSLMODE,default=disable"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`
	// EventChannel is the Redis pub/sub channel prefix for presence and chat events.
	EventChannel string `env:"EVENT_CHANNEL,default=meetsync:events"`

	JWTSecret string `env:"JWT_SECRET,required=true"`

	// StunURLs and TurnURLs are space separated lists.
	StunURLs       string `env:"STUN_URLS,default=stun:stun.l.google.com:19302"`
	TurnURLs       string `env:"TURN_URLS"`
	TurnUsername   string `env:"TURN_USERNAME"`
	TurnCredential string `env:"TURN_CREDENTIAL"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=console"`

	SendBufferSize   int    `env:"SEND_BUFFER_SIZE,default=256"`
	MaxMessageLength int    `env:"MAX_MESSAGE_LENGTH,default=2000"`
	// ReadLimit caps the size of one inbound WebSocket frame in bytes.
	ReadLimit        int64  `env:"WS_READ_LIMIT,default=65536"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.SendBufferSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", cfg.SendBufferSize)
	}
	if cfg.ReadLimit <= 0 {
		return nil, fmt.Errorf("WS_READ_LIMIT must be positive, got %d", cfg.ReadLimit)
	}
	if cfg.MaxMessageLength <= 0 {
		return nil, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", cfg.MaxMessageLength)
	}
	return &cfg, nil
}

// PostgresDSN builds the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// ICEServers is the STUN/TURN list handed to clients. NAT traversal itself happens
// between the browsers and these servers.
func (c *Config) ICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if stun := splitList(c.StunURLs); len(stun) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if turn := splitList(c.TurnURLs); len(turn) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TurnUsername,
			Credential: c.TurnCredential,
		})
	}
	return servers
}

// Origins returns the allowed WebSocket origins; a single "*" allows any.
func (c *Config) Origins() []string {
	return splitList(strings.ReplaceAll(c.AllowedOrigins, ",", " "))
}

func splitList(value string) []string {
	return strings.Fields(value)
}
