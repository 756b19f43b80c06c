package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `json:"server"`
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Security      SecurityConfig      `json:"security"`
	Signing       SigningConfig       `json:"signing"`
	Notifications NotificationsConfig `json:"notifications"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int    `json:"max_connections"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

// StorageConfig selects where document bytes live.
type StorageConfig struct {
	Driver    string `json:"driver"` // "local" or "s3"
	LocalRoot string `json:"local_root"`
	S3Bucket  string `json:"s3_bucket"`
}

// SecurityConfig carries the process secrets. The HMAC secret seals every
// document hash; without it the service must not start.
type SecurityConfig struct {
	HMACSecret string `json:"hmac_secret"`
	JWTSecret  string `json:"jwt_secret"`
}

// SigningConfig
type SigningConfig struct {
	BaseURL    string `json:"base_url"`    // public origin for verification links
	DateLayout string `json:"date_layout"` // date mark format
}

// NotificationsConfig
type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Sender  string `json:"sender"` // verified SES sender address
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "sealdesk",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Storage: StorageConfig{
			Driver:    "local",
			LocalRoot: "data",
		},
		Signing: SigningConfig{
			BaseURL:    "http://localhost:8080",
			DateLayout: "02 Jan 2006",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

// Validate rejects configurations the process cannot safely run with.
func (c *Config) Validate() error {
	if c.Security.HMACSecret == "" {
		return fmt.Errorf("HMAC_SECRET is required")
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "s3" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required for the s3 storage driver")
	}
	return nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = driver
	}
	if root := os.Getenv("STORAGE_ROOT"); root != "" {
		config.Storage.LocalRoot = root
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.S3Bucket = bucket
	}
	if secret := os.Getenv("HMAC_SECRET"); secret != "" {
		config.Security.HMACSecret = secret
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if base := os.Getenv("BASE_URL"); base != "" {
		config.Signing.BaseURL = base
	}
	if sender := os.Getenv("SES_SENDER"); sender != "" {
		config.Notifications.Sender = sender
		config.Notifications.Enabled = true
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
