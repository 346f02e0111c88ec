package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all application configuration
type AppConfig struct {
	Server   ServerConfig
	Database *DatabaseConfig
	Logging  LoggingConfig
	Hardware HardwareConfig
	MQTT     MQTTConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	HTTPSEnabled   bool
	CertFile       string
	KeyFile        string
	LogHTTP        bool
	AllowedOrigins []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// HardwareConfig selects the GPIO backend
type HardwareConfig struct {
	Backend        string // periph or simulated
	LockoutDefault time.Duration
}

// MQTTConfig holds the optional telemetry publisher configuration
type MQTTConfig struct {
	Enabled     bool
	BrokerHost  string
	BrokerPort  int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	UseTLS      bool
	CACertPath  string
}

// AuthConfig holds the operator token hash; auth is off when it is empty
type AuthConfig struct {
	OperatorTokenHash string
}

// Load reads .env (if present) and the environment
func Load() (*AppConfig, error) {
	// A missing .env is fine, the environment may be set directly
	_ = godotenv.Load()

	cfg := &AppConfig{
		Server: ServerConfig{
			Port:           getEnv("HTTP_PORT", "8080"),
			HTTPSEnabled:   getBool("HTTPS_ENABLED", false),
			CertFile:       getEnv("SSL_CERT_FILE", ""),
			KeyFile:        getEnv("SSL_KEY_FILE", ""),
			LogHTTP:        getBool("LOG_HTTP", false),
			AllowedOrigins: getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: GetDatabaseConfig(),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Hardware: HardwareConfig{
			Backend:        getEnv("GPIO_BACKEND", "simulated"),
			LockoutDefault: getDuration("LOCKOUT_DEFAULT", 1000*time.Second),
		},
		MQTT: MQTTConfig{
			Enabled:     getBool("MQTT_ENABLED", false),
			BrokerHost:  getEnv("MQTT_BROKER", "localhost"),
			BrokerPort:  getInt("MQTT_PORT", 1883),
			ClientID:    getEnv("MQTT_CLIENT_ID", "gpio-control-server"),
			Username:    getEnv("MQTT_USERNAME", ""),
			Password:    getEnv("MQTT_PASSWORD", ""),
			TopicPrefix: strings.TrimSuffix(getEnv("MQTT_TOPIC_PREFIX", "gpio"), "/"),
			UseTLS:      getBool("MQTT_USE_TLS", false),
			CACertPath:  getEnv("MQTT_CA_CERT", ""),
		},
		Auth: AuthConfig{
			OperatorTokenHash: getEnv("OPERATOR_TOKEN_HASH", ""),
		},
	}

	if err := InitializeTimezone(); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *AppConfig) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	switch c.Hardware.Backend {
	case "periph", "simulated":
	default:
		return fmt.Errorf("GPIO_BACKEND must be periph or simulated, got %q", c.Hardware.Backend)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	if c.Hardware.LockoutDefault <= 0 {
		return fmt.Errorf("LOCKOUT_DEFAULT must be positive")
	}
	if c.MQTT.Enabled && (c.MQTT.BrokerPort <= 0 || c.MQTT.BrokerPort > 65535) {
		return fmt.Errorf("MQTT_PORT out of range: %d", c.MQTT.BrokerPort)
	}
	if c.Server.HTTPSEnabled && (c.Server.CertFile == "" || c.Server.KeyFile == "") {
		return fmt.Errorf("SSL_CERT_FILE and SSL_KEY_FILE must be set when HTTPS_ENABLED=true")
	}
	return nil
}
