package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default business constants for the water level analysis. These are
// operational thresholds, not computed values.
const (
	DefaultHighThreshold    = 150.0 // cm
	DefaultLowThreshold     = 10.0  // cm
	DefaultWarningLevel     = 150.0 // cm
	DefaultCriticalLevel    = 180.0 // cm
	DefaultWarningRiseRate  = 0.5   // cm/min
	DefaultCriticalRiseRate = 2.0   // cm/min
	DefaultCooldown         = 5 * time.Minute
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Telegram  TelegramConfig
	Alerts    AlertConfig
	Intervals IntervalConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string
	AllowOrigins []string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers []string
	GroupID string
	Topic   string
}

// TelegramConfig holds notification delivery configuration. Notifications
// are disabled when Enabled is false or the token/chat are empty.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   string
	APIBase  string
}

// AlertConfig holds the thresholds driving anomaly detection, risk
// classification and the smart alert engine
type AlertConfig struct {
	HighThreshold    float64       `json:"high_threshold"`
	LowThreshold     float64       `json:"low_threshold"`
	WarningLevel     float64       `json:"warning_level"`
	CriticalLevel    float64       `json:"critical_level"`
	WarningRiseRate  float64       `json:"warning_rise_rate"`
	CriticalRiseRate float64       `json:"critical_rise_rate"`
	Cooldown         time.Duration `json:"-"`
	CooldownMinutes  float64       `json:"cooldown_minutes"`
}

// IntervalConfig holds the poll intervals of the metric cycles. They are
// independent and deliberately uncoordinated: two cycles may observe
// slightly different snapshots in the same instant.
type IntervalConfig struct {
	Readings   time.Duration
	Anomaly    time.Duration
	SmartAlert time.Duration
	Prediction time.Duration
	Nodes      time.Duration
}

// DefaultAlertConfig returns the documented fallback thresholds
func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		HighThreshold:    DefaultHighThreshold,
		LowThreshold:     DefaultLowThreshold,
		WarningLevel:     DefaultWarningLevel,
		CriticalLevel:    DefaultCriticalLevel,
		WarningRiseRate:  DefaultWarningRiseRate,
		CriticalRiseRate: DefaultCriticalRiseRate,
		Cooldown:         DefaultCooldown,
		CooldownMinutes:  DefaultCooldown.Minutes(),
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	dbPort, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %v", err)
	}

	alerts := DefaultAlertConfig()
	alerts.HighThreshold = getEnvFloat("ALERT_HIGH_THRESHOLD", alerts.HighThreshold)
	alerts.LowThreshold = getEnvFloat("ALERT_LOW_THRESHOLD", alerts.LowThreshold)
	alerts.WarningLevel = getEnvFloat("RISK_WARNING_LEVEL", alerts.WarningLevel)
	alerts.CriticalLevel = getEnvFloat("RISK_CRITICAL_LEVEL", alerts.CriticalLevel)
	alerts.WarningRiseRate = getEnvFloat("RISK_WARNING_RISE_RATE", alerts.WarningRiseRate)
	alerts.CriticalRiseRate = getEnvFloat("RISK_CRITICAL_RISE_RATE", alerts.CriticalRiseRate)
	alerts.Cooldown = getEnvDuration("ALERT_COOLDOWN", alerts.Cooldown)
	alerts.CooldownMinutes = alerts.Cooldown.Minutes()

	return &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("SERVER_PORT", "8080"),
			AllowOrigins: []string{
				getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
				"http://localhost:3000",
			},
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     dbPort,
			Name:     getEnvOrDefault("DB_NAME", "floodwatch"),
			User:     getEnvOrDefault("DB_USER", "floodwatch"),
			Password: getEnvOrDefault("DB_PASSWORD", "floodwatch"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers: []string{getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")},
			GroupID: getEnvOrDefault("KAFKA_GROUP_ID", "floodwatch-backend"),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "water.levels"),
		},
		Telegram: TelegramConfig{
			Enabled:  getEnvOrDefault("TELEGRAM_ENABLED", "false") == "true",
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			APIBase:  getEnvOrDefault("TELEGRAM_API_BASE", "https://api.telegram.org"),
		},
		Alerts: alerts,
		Intervals: IntervalConfig{
			Readings:   getEnvDuration("POLL_READINGS", 30*time.Second),
			Anomaly:    getEnvDuration("POLL_ANOMALY", 60*time.Second),
			SmartAlert: getEnvDuration("POLL_SMART_ALERT", 30*time.Second),
			Prediction: getEnvDuration("POLL_PREDICTION", 30*time.Second),
			Nodes:      getEnvDuration("POLL_NODES", 30*time.Second),
		},
	}, nil
}

// GetDatabaseURL returns formatted database connection URL
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
