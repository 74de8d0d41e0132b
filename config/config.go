// Package config has the configuration for the NCD policy server
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment is the deployment environment the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// Server identity reported over MCP, in traces and in the CMS User-Agent
const (
	AppName    = "priorauth-checker"
	AppVersion = "2.3.0"
)

// DefaultCMSBaseURL is the public CMS coverage endpoint for National Coverage Determinations
const DefaultCMSBaseURL = "https://api.coverage.cms.gov/v1/data/ncd/"

// LogDirDisabled disables the rotating file logger when used as LOG_DIR
const LogDirDisabled = "-"

// ParseEnvironment maps the accepted spellings of ENV to an Environment
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", raw)
}

func (e Environment) String() string {
	return string(e)
}

// Config holds all application configuration
type Config struct {
	Env               Environment
	LogLevel          string `validate:"oneof=debug info warn warning error"`
	LogDir            string `validate:"required"`
	LogRetentionWeeks int    `validate:"min=1,max=52"`               // Number of weeks to keep log files
	MaxLogFileSize    int64  `validate:"min=1048576,max=1073741824"` // Maximum log file size in bytes

	LookupDBPath   string        // SQLite reference table, empty selects the built-in table
	CMSBaseURL     string        `validate:"required,url"`
	CMSHTTPTimeout time.Duration `validate:"gt=0"`

	Address        string // Admin server address
	Port           string // Admin server port, empty disables the admin server
	MaxRequestBody int64  `validate:"min=1024,max=104857600"` // Maximum admin request body size in bytes
	MaxHeaderSize  int64  `validate:"min=1024,max=10485760"`  // Maximum admin header size in bytes

	ProbeInterval time.Duration `validate:"gte=0"`
	ProbeNCDID    string
	ProbeNCDVer   string

	OTLPEndpoint string
}

// AdminEnabled reports whether the admin HTTP server should be started
func (c *Config) AdminEnabled() bool {
	return c.Port != ""
}

// FileLoggingEnabled reports whether logs should also go to the rotating file
func (c *Config) FileLoggingEnabled() bool {
	return c.LogDir != LogDirDisabled
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadDotEnv reads a .env file from the working directory, then from the
// executable directory. A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	ex, err := os.Executable()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		LookupDBPath:      os.Getenv("LOOKUP_DB_PATH"),
		CMSBaseURL:        getEnvWithDefault("CMS_API_BASE_URL", DefaultCMSBaseURL),
		CMSHTTPTimeout:    getDurationEnvWithDefault("CMS_HTTP_TIMEOUT", 30*time.Second),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Port:              os.Getenv("PORT"),
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576), // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),  // 1MB default
		ProbeInterval:     getDurationEnvWithDefault("PROBE_INTERVAL", time.Hour),
		ProbeNCDID:        getEnvWithDefault("PROBE_NCD_ID", "313"),
		ProbeNCDVer:       getEnvWithDefault("PROBE_NCD_VER", "2"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig runs the struct tag rules, then the checks tags cannot express
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid %s: failed %q rule (value: %v)", envNameFor(fe.Field()), fe.Tag(), fe.Value())
		}
		return err
	}

	if err := validateBaseURL(cfg.CMSBaseURL); err != nil {
		return fmt.Errorf("invalid CMS_API_BASE_URL: %w", err)
	}

	if cfg.AdminEnabled() {
		if err := validatePort(cfg.Port); err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		if err := validateAddress(cfg.Address); err != nil {
			return fmt.Errorf("invalid ADDRESS: %w", err)
		}
	}

	if cfg.ProbeInterval > 0 && (cfg.ProbeNCDID == "" || cfg.ProbeNCDVer == "") {
		return fmt.Errorf("PROBE_NCD_ID and PROBE_NCD_VER are required when PROBE_INTERVAL is set")
	}

	return nil
}

// validateBaseURL only accepts absolute http(s) URLs
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// The admin server exposes metrics, keep it off public interfaces
	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

var envNames = map[string]string{
	"LogLevel":          "LOG_LEVEL",
	"LogDir":            "LOG_DIR",
	"LogRetentionWeeks": "LOG_RETENTION_WEEKS",
	"MaxLogFileSize":    "MAX_LOG_FILE_SIZE",
	"CMSBaseURL":        "CMS_API_BASE_URL",
	"CMSHTTPTimeout":    "CMS_HTTP_TIMEOUT",
	"MaxRequestBody":    "MAX_REQUEST_BODY",
	"MaxHeaderSize":     "MAX_HEADER_SIZE",
	"ProbeInterval":     "PROBE_INTERVAL",
}

func envNameFor(field string) string {
	if name, ok := envNames[field]; ok {
		return name
	}
	return field
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations, and "0" to disable
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"LOOKUP_DB_PATH",
		"CMS_API_BASE_URL",
		"CMS_HTTP_TIMEOUT",
		"ADDRESS",
		"PORT",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"PROBE_INTERVAL",
		"PROBE_NCD_ID",
		"PROBE_NCD_VER",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	}
}
