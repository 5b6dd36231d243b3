package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all coordinator configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration (PostgreSQL, durable sessions/catalog)
	Database DatabaseConfig `json:"database"`

	// Mongo configuration (append-only sensor reading log)
	Mongo MongoConfig `json:"mongo"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Rental configuration
	Rental RentalConfig `json:"rental"`

	// Alerting configuration
	Alerting AlertingConfig `json:"alerting"`

	// Thresholds configuration
	Thresholds ThresholdsConfig `json:"thresholds"`

	// Registry configuration
	Registry RegistryConfig `json:"registry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// MongoConfig holds MongoDB-related configuration
type MongoConfig struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	BrokerHost  string        `json:"broker_host"`
	BrokerPort  int           `json:"broker_port"`
	BrokerUser  string        `json:"broker_user"`
	BrokerPass  string        `json:"broker_pass"`
	UseTLS      bool          `json:"use_tls"`
	CACertPath  string        `json:"ca_cert_path"`
	ClientID    string        `json:"client_id"`
	KeepAlive   time.Duration `json:"keep_alive"`
	PingTimeout time.Duration `json:"ping_timeout"`
}

// RentalConfig holds rental session configuration
type RentalConfig struct {
	// StartGrace is how early before the scheduled start a rental may
	// be started.
	StartGrace time.Duration `json:"start_grace"`

	// ExtendAllowedMinutes is the allow-list of extension sizes.
	ExtendAllowedMinutes []int `json:"extend_allowed_minutes"`

	// DefaultDurationMinutes is used to synthesize a missing end time.
	DefaultDurationMinutes int `json:"default_duration_minutes"`

	// EndingSoonLead is how far before the scheduled end the monitor
	// warns the renter.
	EndingSoonLead time.Duration `json:"ending_soon_lead"`

	// MonitorInterval is how often the ending-soon monitor runs.
	MonitorInterval time.Duration `json:"monitor_interval"`
}

// AlertingConfig holds alert dispatcher configuration
type AlertingConfig struct {
	CooldownTTL   time.Duration `json:"cooldown_ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// ThresholdsConfig holds threshold engine configuration
type ThresholdsConfig struct {
	HistoryWindow time.Duration `json:"history_window"`
	MinSamples    int           `json:"min_samples"`
	CacheTTL      time.Duration `json:"cache_ttl"`
}

// RegistryConfig holds device registry configuration
type RegistryConfig struct {
	ConnectedWindow time.Duration `json:"connected_window"`
	StaleWindow     time.Duration `json:"stale_window"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

// Load loads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	if err := godotenv.Load(); err != nil {
		// Silently ignore .env file loading errors
		// This allows the application to work with environment variables set directly
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "9002"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getRequiredEnv("POSTGRES_USER"),
			Password: getRequiredEnv("POSTGRES_PASSWORD"),
			DBName:   getEnv("POSTGRES_DB", "rental"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getInt("POSTGRES_MIN_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DB", "rental"),
			Collection: getEnv("MONGO_READINGS_COLLECTION", "sensor_readings"),
		},
		MQTT: MQTTConfig{
			BrokerHost:  getEnv("BROKER_HOST", "localhost"),
			BrokerPort:  getInt("BROKER_PORT", 1883),
			BrokerUser:  getEnv("BROKER_USER", ""),
			BrokerPass:  getEnv("BROKER_PASS", ""),
			UseTLS:      getBool("BROKER_TLS", false),
			CACertPath:  getEnv("BROKER_CA_FILE", ""),
			ClientID:    getEnv("MQTT_CLIENT_ID", "rental-coordinator"),
			KeepAlive:   getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout: getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
		},
		Rental: RentalConfig{
			StartGrace:             getDuration("RENTAL_START_GRACE", 15*time.Minute),
			ExtendAllowedMinutes:   getIntSlice("RENTAL_EXTEND_ALLOWED_MINUTES", []int{5, 10, 15}),
			DefaultDurationMinutes: getInt("RENTAL_DEFAULT_DURATION_MINUTES", 60),
			EndingSoonLead:         getDuration("RENTAL_ENDING_SOON_LEAD", 3*time.Minute),
			MonitorInterval:        getDuration("RENTAL_MONITOR_INTERVAL", time.Minute),
		},
		Alerting: AlertingConfig{
			CooldownTTL:   getDuration("ALERT_COOLDOWN_TTL", 5*time.Minute),
			SweepInterval: getDuration("ALERT_SWEEP_INTERVAL", time.Minute),
		},
		Thresholds: ThresholdsConfig{
			HistoryWindow: getDuration("THRESHOLD_HISTORY_WINDOW", 30*24*time.Hour),
			MinSamples:    getInt("THRESHOLD_MIN_SAMPLES", 20),
			CacheTTL:      getDuration("THRESHOLD_CACHE_TTL", time.Minute),
		},
		Registry: RegistryConfig{
			ConnectedWindow: getDuration("REGISTRY_CONNECTED_WINDOW", 2*time.Minute),
			StaleWindow:     getDuration("REGISTRY_STALE_WINDOW", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "token"}),
			ExposedHeaders:   getStringSlice("CORS_EXPOSED_HEADERS", []string{"Content-Length"}),
			AllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getInt("CORS_MAX_AGE", 43200), // 12 hours
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if len(c.Rental.ExtendAllowedMinutes) == 0 {
		return fmt.Errorf("RENTAL_EXTEND_ALLOWED_MINUTES must not be empty")
	}
	if c.Rental.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("RENTAL_DEFAULT_DURATION_MINUTES must be positive")
	}
	if c.Alerting.CooldownTTL <= 0 {
		return fmt.Errorf("ALERT_COOLDOWN_TTL must be positive")
	}
	if c.Thresholds.MinSamples < 1 {
		return fmt.Errorf("THRESHOLD_MIN_SAMPLES must be at least 1")
	}
	if c.Registry.ConnectedWindow >= c.Registry.StaleWindow {
		return fmt.Errorf("REGISTRY_CONNECTED_WINDOW must be shorter than REGISTRY_STALE_WINDOW")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getRequiredEnv returns the raw value; Validate reports the absence of
// required variables so that Load can fail with an error instead of
// exiting.
func getRequiredEnv(key string) string {
	return os.Getenv(key)
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "1" || value == "true" || value == "TRUE" {
		return true
	}
	if value == "0" || value == "false" || value == "FALSE" {
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func getIntSlice(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]int, 0)
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		intValue, err := strconv.Atoi(trimmed)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		parts = append(parts, intValue)
	}
	return parts
}
