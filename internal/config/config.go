package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 3000
	DefaultCodeLength   = 6
	DefaultCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// minAlphabetSize keeps the code space large enough that collision
	// retries stay rare at realistic session counts.
	minAlphabetSize = 10
	minCodeLength   = 4
)

// ambiguousGlyphs may never appear in a session code alphabet.
const ambiguousGlyphs = "0O1I"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Limits  LimitsConfig  `yaml:"limits"`
	Log     LogConfig     `yaml:"log"`
	Demo    DemoConfig    `yaml:"demo"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	SendBuffer      int           `yaml:"send_buffer"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
	MaxConnections  int           `yaml:"max_connections"`
}

type SessionConfig struct {
	CodeLength   int    `yaml:"code_length"`
	CodeAlphabet string `yaml:"code_alphabet"`
}

type LimitsConfig struct {
	ReactionCooldown time.Duration `yaml:"reaction_cooldown"`
	ReplyCooldown    time.Duration `yaml:"reply_cooldown"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DemoConfig struct {
	Participants int           `yaml:"participants"`
	Interval     time.Duration `yaml:"interval"`
}

// overrides holds the environment variables that take precedence over the
// yaml file. Unset variables leave the file value alone.
type overrides struct {
	Host           string `env:"PULSE_HOST"`
	Port           int    `env:"PULSE_PORT"`
	LogLevel       string `env:"PULSE_LOG_LEVEL"`
	LogFormat      string `env:"PULSE_LOG_FORMAT"`
	AllowedOrigins string `env:"PULSE_ALLOWED_ORIGINS"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			Host:            "0.0.0.0",
			WriteTimeout:    5 * time.Second,
			PingInterval:    30 * time.Second,
			SendBuffer:      64,
			MaxMessageBytes: 4096,
			MaxConnections:  10000,
		},
		Session: SessionConfig{
			CodeLength:   DefaultCodeLength,
			CodeAlphabet: DefaultCodeAlphabet,
		},
		Limits: LimitsConfig{
			ReactionCooldown: 1200 * time.Millisecond,
			ReplyCooldown:    5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Demo: DemoConfig{
			Participants: 12,
			Interval:     1500 * time.Millisecond,
		},
	}
}

// Default returns the built-in configuration without consulting the file
// system or environment.
func Default() *Config {
	return defaultConfig()
}

// Load reads the yaml file at path on top of the defaults, then applies
// environment overrides (including a .env file in the working directory).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefault behaves like Load but treats a missing file as empty.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return finish(defaultConfig())
	}
	return nil, err
}

func finish(cfg *Config) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := env.Load(&o, nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if o.Host != "" {
		c.Server.Host = o.Host
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Log.Format = o.LogFormat
	}
	if o.AllowedOrigins != "" {
		c.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(o.AllowedOrigins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, trimmed)
			}
		}
	}
	return nil
}

// Validate reports the first setting that would make the server misbehave.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Session.CodeLength < minCodeLength {
		return fmt.Errorf("session.code_length must be at least %d, got %d", minCodeLength, c.Session.CodeLength)
	}

	seen := make(map[rune]bool)
	for _, r := range c.Session.CodeAlphabet {
		if strings.ContainsRune(ambiguousGlyphs, r) {
			return fmt.Errorf("session.code_alphabet contains ambiguous glyph %q", r)
		}
		if r < '0' || (r > '9' && r < 'A') || r > 'Z' {
			return fmt.Errorf("session.code_alphabet must be uppercase alphanumeric, got %q", r)
		}
		if seen[r] {
			return fmt.Errorf("session.code_alphabet repeats %q", r)
		}
		seen[r] = true
	}
	if len(seen) < minAlphabetSize {
		return fmt.Errorf("session.code_alphabet needs at least %d distinct characters, got %d", minAlphabetSize, len(seen))
	}

	if c.Limits.ReactionCooldown < 0 || c.Limits.ReplyCooldown < 0 {
		return errors.New("limits cooldowns must not be negative")
	}
	if c.Server.SendBuffer < 1 {
		return errors.New("server.send_buffer must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
