package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	JWT      JWTConfig
	OAuth    OAuthConfig
	Model    ModelConfig
	Audio    AudioConfig
	Memory   MemoryConfig
	Weather  WeatherConfig
}

// ServerConfig holds HTTP server settings. The rate limit applies per client
// IP on the unauthenticated routes.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// RedisConfig holds Redis connection settings for the memory store.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// DatabaseConfig holds PostgreSQL settings for the database tool.
// An empty Host disables the live backend; the tool then serves its
// built-in demo tables.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// JWTConfig holds token settings for gateway-issued access tokens.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	AccessTTL time.Duration
}

// OAuthConfig holds Google OAuth2 settings. Empty ClientID disables
// authentication entirely (local development mode).
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// ModelConfig selects and configures the speech model backend.
type ModelConfig struct {
	Backend      string // "loopback" or "realtime"
	ModelID      string
	Voice        string
	URL          string // upstream endpoint for the realtime backend
	APIKey       string
	SystemPrompt string
}

// AudioConfig holds the default audio parameters for both directions.
type AudioConfig struct {
	InputSampleRate  int
	OutputSampleRate int
}

// MemoryConfig controls session/memory persistence.
type MemoryConfig struct {
	Enabled    bool
	SealingKey string // optional 32-byte hex key for at-rest payload sealing
}

// WeatherConfig holds the OpenWeatherMap key for the weather tool.
type WeatherConfig struct {
	APIKey string
}

// validSampleRates mirrors the rates the speech model accepts.
//
//nolint:gochecknoglobals // fixed model capability table
var validSampleRates = []int{16000, 24000, 48000}

// defaultSystemPrompt is used when VONA_SYSTEM_PROMPT is not set.
const defaultSystemPrompt = "You are a helpful voice assistant with access to calculator, weather, " +
	"and database tools. Provide clear, concise responses and use tools when appropriate."

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production, the JWT
// secret and OAuth client must be set explicitly.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("VONA_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("VONA_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("VONA_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbPort, err := getEnvInt("VONA_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("VONA_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("VONA_JWT_ACCESS_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	inputRate, err := getEnvInt("VONA_INPUT_SAMPLE_RATE", 16000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	outputRate, err := getEnvInt("VONA_OUTPUT_SAMPLE_RATE", 24000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	memoryEnabled, err := getEnvBool("VONA_MEMORY_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("VONA_CORS_ORIGINS", []string{"http://localhost:8080"})

	rateLimitRPS, err := getEnvFloat("VONA_RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitBurst, err := getEnvInt("VONA_RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("VONA_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    corsOrigins,
			RateLimitRPS:   rateLimitRPS,
			RateLimitBurst: rateLimitBurst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("VONA_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VONA_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			Host:     getEnv("VONA_DB_HOST", ""),
			Port:     dbPort,
			User:     getEnv("VONA_DB_USER", "vona"),
			Password: getEnv("VONA_DB_PASSWORD", ""),
			DBName:   getEnv("VONA_DB_NAME", "vona_dev"),
			SSLMode:  getEnv("VONA_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		JWT: JWTConfig{
			Secret:    getEnv("VONA_JWT_SECRET", ""),
			AccessTTL: accessTTL,
		},
		OAuth: OAuthConfig{
			ClientID:     getEnv("VONA_OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("VONA_OAUTH_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("VONA_OAUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/callback"),
		},
		Model: ModelConfig{
			Backend:      getEnv("VONA_MODEL_BACKEND", "loopback"),
			ModelID:      getEnv("VONA_MODEL_ID", "vona-speech-1"),
			Voice:        getEnv("VONA_VOICE", "matthew"),
			URL:          getEnv("VONA_MODEL_URL", ""),
			APIKey:       getEnv("VONA_MODEL_API_KEY", ""),
			SystemPrompt: getEnv("VONA_SYSTEM_PROMPT", defaultSystemPrompt),
		},
		Audio: AudioConfig{
			InputSampleRate:  inputRate,
			OutputSampleRate: outputRate,
		},
		Memory: MemoryConfig{
			Enabled:    memoryEnabled,
			SealingKey: getEnv("VONA_MEMORY_SEALING_KEY", ""),
		},
		Weather: WeatherConfig{
			APIKey: getEnv("VONA_WEATHER_API_KEY", ""),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// AuthEnabled reports whether the OAuth2 login flow is configured. When it is
// not, the gateway runs in open local-development mode.
func (c *Config) AuthEnabled() bool {
	return c.OAuth.ClientID != ""
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.AuthEnabled() {
		if c.JWT.Secret == "" {
			return errors.New("VONA_JWT_SECRET is required when OAuth is configured")
		}
		if len(c.JWT.Secret) < 32 {
			return errors.New("VONA_JWT_SECRET must be at least 32 characters")
		}
		if c.OAuth.ClientSecret == "" {
			return errors.New("VONA_OAUTH_CLIENT_SECRET is required when OAuth is configured")
		}
	} else {
		log.Warn().Msg("OAuth not configured; gateway runs unauthenticated (local development only)")
	}

	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("VONA_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("VONA_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("VONA_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("VONA_RATE_LIMIT_RPS must be positive, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("VONA_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}

	if !slices.Contains(validSampleRates, c.Audio.InputSampleRate) {
		return fmt.Errorf("VONA_INPUT_SAMPLE_RATE must be one of %v, got %d", validSampleRates, c.Audio.InputSampleRate)
	}
	if !slices.Contains(validSampleRates, c.Audio.OutputSampleRate) {
		return fmt.Errorf("VONA_OUTPUT_SAMPLE_RATE must be one of %v, got %d", validSampleRates, c.Audio.OutputSampleRate)
	}

	if c.Model.Backend == "realtime" && c.Model.URL == "" {
		return errors.New("VONA_MODEL_URL is required for the realtime backend")
	}

	if c.Database.Host != "" {
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("VONA_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("VONA_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	}

	if c.Memory.SealingKey != "" && len(c.Memory.SealingKey) != 64 {
		return errors.New("VONA_MEMORY_SEALING_KEY must be 64 hex characters (32 bytes)")
	}

	return nil
}

// DSN returns the PostgreSQL connection string for the database tool.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
