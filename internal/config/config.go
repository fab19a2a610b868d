package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/zeticontents/zetisync/internal/domain"
)

const (
	DefaultAPIBase      = "/api"
	DefaultPushBase     = "/ws"
	DefaultOrigin       = "http://localhost:8000"
	DefaultPort         = "8090"
	DefaultDBPath       = "zetisync.db"
	DefaultMaxRetries   = 3
	DefaultReconnectSec = 1
)

// Config holds all application configuration
type Config struct {
	APIBaseURL     string
	PushBaseURL    string
	Origin         string
	ClientID       string
	Tier           string
	Chipset        string
	MemoryGB       int
	Resolution     string
	Port           string
	DBPath         string
	DownloadsDir   string
	MaxRetries     int
	ReconnectDelay int // seconds before the first reconnect attempt
	LogLevel       string
	LogFormat      string
}

// Load loads configuration from environment variables with defaults.
// A missing CLIENT_ID gets a generated identity; the device profile fields
// come from whatever capability probe populated the environment.
func Load() *Config {
	home, _ := os.UserHomeDir()
	defaultDownload := filepath.Join(home, "Downloads/zetisync")

	return &Config{
		APIBaseURL:     getEnv("API_BASE_URL", DefaultAPIBase),
		PushBaseURL:    getEnv("WS_BASE_URL", DefaultPushBase),
		Origin:         getEnv("ORIGIN", DefaultOrigin),
		ClientID:       getEnv("CLIENT_ID", "zeti-"+uuid.New().String()),
		Tier:           getEnv("TIER", string(domain.TierFree)),
		Chipset:        getEnv("DEVICE_CHIPSET", "unknown"),
		MemoryGB:       getEnvInt("DEVICE_MEMORY_GB", 0),
		Resolution:     getEnv("DEVICE_RESOLUTION", ""),
		Port:           getEnv("PORT", DefaultPort),
		DBPath:         getEnv("DB_PATH", DefaultDBPath),
		DownloadsDir:   getEnv("DOWNLOADS_DIR", defaultDownload),
		MaxRetries:     getEnvInt("WS_MAX_RETRIES", DefaultMaxRetries),
		ReconnectDelay: getEnvInt("WS_RECONNECT_DELAY", DefaultReconnectSec),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.ClientID == "" {
		errors = append(errors, "CLIENT_ID cannot be empty")
	}

	if !domain.Tier(c.Tier).Valid() {
		errors = append(errors, fmt.Sprintf("TIER must be one of free, standard, premium, got: %s", c.Tier))
	}

	if c.MemoryGB < 0 {
		errors = append(errors, fmt.Sprintf("DEVICE_MEMORY_GB cannot be negative, got: %d", c.MemoryGB))
	}

	if c.Origin == "" {
		errors = append(errors, "ORIGIN cannot be empty")
	} else if _, err := url.Parse(c.Origin); err != nil {
		errors = append(errors, fmt.Sprintf("ORIGIN is not a valid URL: %s", c.Origin))
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.DownloadsDir == "" {
		errors = append(errors, "DOWNLOADS_DIR cannot be empty")
	}

	if c.MaxRetries < 0 {
		errors = append(errors, fmt.Sprintf("WS_MAX_RETRIES cannot be negative, got: %d", c.MaxRetries))
	}

	if c.ReconnectDelay < 1 {
		errors = append(errors, fmt.Sprintf("WS_RECONNECT_DELAY must be at least 1 second, got: %d", c.ReconnectDelay))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

// Profile returns the immutable device profile for this session.
func (c *Config) Profile() domain.DeviceProfile {
	return domain.DeviceProfile{
		Chipset:    c.Chipset,
		Memory:     c.MemoryGB,
		Resolution: c.Resolution,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
