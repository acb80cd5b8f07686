package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	SoundCloud  SoundCloudConfig  `toml:"soundcloud"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	SoundCloud SoundCloudCredentials `toml:"soundcloud"`
}

// SoundCloudCredentials is the OAuth client used for the client-credentials exchange.
type SoundCloudCredentials struct {
	ClientID     string `toml:"client_id" env:"SOUND_CLOUD_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SOUND_CLOUD_CLIENT_SECRET"`
}

// SoundCloudConfig contains upstream API endpoints and the token cache tuning knobs.
type SoundCloudConfig struct {
	APIURL              string   `toml:"api_url" env:"SOUND_CLOUD_API_URL"`
	TokenURL            string   `toml:"token_url" env:"SOUND_CLOUD_TOKEN_URL"`
	AllowedHosts        []string `toml:"allowed_hosts" env:"SOUND_CLOUD_ALLOWED_HOSTS" envSeparator:","`
	RequestsPerSecond   float64  `toml:"requests_per_second"`
	CooldownSeconds     int      `toml:"cooldown_seconds"`
	ExpiryMarginSeconds int      `toml:"expiry_margin_seconds"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"DATABASE_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host" env:"HOST"`
	Port          int    `toml:"port" env:"PORT"`
	StaticDir     string `toml:"static_dir"`
	AllowedOrigin string `toml:"allowed_origin"`
}

// PlayerConfig contains settings for the terminal timeline player.
type PlayerConfig struct {
	ProxyURL     string   `toml:"proxy_url" env:"COMPOSERS_PROXY_URL"`
	Timeline     string   `toml:"timeline"`
	StreamFields []string `toml:"stream_fields"`
	MPVPath      string   `toml:"mpv_path" env:"MPV_PATH"`
	AudioDevice  string   `toml:"audio_device"`
	LogPath      string   `toml:"log_path"`
}

// Cooldown is the fail-fast window after the token endpoint answers 429.
func (c SoundCloudConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// ExpiryMargin is subtracted from a token's declared expiry.
func (c SoundCloudConfig) ExpiryMargin() time.Duration {
	return time.Duration(c.ExpiryMarginSeconds) * time.Second
}

// Timeout bounds each outbound HTTP call.
func (c SoundCloudConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Address returns the listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Load reads path when it exists (falling back to defaults otherwise), then overlays the environment.
//
// envFile is loaded with godotenv first; variables already present in the process environment win.
func Load(path, envFile string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := ApplyEnv(config, envFile); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overlays environment variables onto config.
func ApplyEnv(config *Config, envFile string) error {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Validate checks the settings the proxy server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	creds := c.Credentials.SoundCloud
	if strings.TrimSpace(creds.ClientID) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		errs = append(errs, fmt.Errorf("%w: SOUND_CLOUD_CLIENT_ID and SOUND_CLOUD_CLIENT_SECRET are required", ErrMissingCredentials))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: server port must be between 1 and 65535", ErrInvalidConfig))
	}
	if c.SoundCloud.APIURL == "" || c.SoundCloud.TokenURL == "" {
		errs = append(errs, fmt.Errorf("%w: soundcloud api_url and token_url are required", ErrInvalidConfig))
	}
	if c.SoundCloud.CooldownSeconds < 0 || c.SoundCloud.ExpiryMarginSeconds < 0 {
		errs = append(errs, fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
