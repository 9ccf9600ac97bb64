package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Quota     QuotaConfig     `yaml:"quota"`
	Media     MediaConfig     `yaml:"media"`
	APNs      APNsConfig      `yaml:"apns"`
	Retry     RetryConfig     `yaml:"retry"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Migrate  bool   `yaml:"migrate"`
}

// StorageConfig holds blob store configuration
type StorageConfig struct {
	Driver       string        `yaml:"driver"` // s3 or minio
	Region       string        `yaml:"region"`
	Bucket       string        `yaml:"bucket"`
	AccessKey    string        `yaml:"access_key"`
	SecretKey    string        `yaml:"secret_key"`
	Endpoint     string        `yaml:"endpoint"`
	UseSSL       bool          `yaml:"use_ssl"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	QuotaPolicyBytes = "bytes"
	QuotaPolicyItems = "items"
)

// QuotaConfig selects the daily upload policy.
// Plans maps a plan name to its daily byte allowance.
type QuotaConfig struct {
	Policy          string           `yaml:"policy"`
	Plans           map[string]int64 `yaml:"plans"`
	DefaultPlan     string           `yaml:"default_plan"`
	DailyImageLimit int              `yaml:"daily_image_limit"`
	DailyVideoLimit int              `yaml:"daily_video_limit"`
}

// MediaConfig holds upload and derivative settings
type MediaConfig struct {
	ImageExtensions []string `yaml:"image_extensions"`
	VideoExtensions []string `yaml:"video_extensions"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes"`
	ThumbnailSize   int      `yaml:"thumbnail_size"`
	JPEGQuality     int      `yaml:"jpeg_quality"`
	FFmpegPath      string   `yaml:"ffmpeg_path"`
}

// APNsConfig holds push notification credentials. Push is disabled when KeyFile is empty.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// RetryConfig bounds retries of transient storage errors
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
}

// ReconcileConfig controls the orphaned upload sweep
type ReconcileConfig struct {
	Interval   time.Duration `yaml:"interval"`
	PendingTTL time.Duration `yaml:"pending_ttl"`
}

// Default returns the configuration used when a value is not set in the file
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			DBName:  "groupmedia",
			SSLMode: "disable",
			Migrate: true,
		},
		Storage: StorageConfig{
			Driver:       "s3",
			Region:       "eu-north-1",
			UseSSL:       true,
			SignedURLTTL: 15 * time.Minute,
		},
		Log: LogConfig{Level: "info"},
		Quota: QuotaConfig{
			Policy:          QuotaPolicyBytes,
			Plans:           map[string]int64{"free": 10 << 20, "premium": 1 << 30},
			DefaultPlan:     "free",
			DailyImageLimit: 10,
			DailyVideoLimit: 2,
		},
		Media: MediaConfig{
			ImageExtensions: []string{"png", "jpg", "jpeg", "gif"},
			VideoExtensions: []string{"mp4", "mov", "avi", "m4v"},
			MaxUploadBytes:  200 << 20,
			ThumbnailSize:   300,
			JPEGQuality:     85,
			FFmpegPath:      "ffmpeg",
		},
		Retry: RetryConfig{MaxAttempts: 3, InitialInterval: 200 * time.Millisecond},
		Reconcile: ReconcileConfig{
			Interval:   10 * time.Minute,
			PendingTTL: time.Hour,
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	switch c.Storage.Driver {
	case "s3":
	case "minio":
		if c.Storage.Endpoint == "" {
			errs = append(errs, errors.New("storage.endpoint is required for the minio driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}

	switch c.Quota.Policy {
	case QuotaPolicyBytes:
		if _, ok := c.Quota.Plans[c.Quota.DefaultPlan]; !ok {
			errs = append(errs, fmt.Errorf("quota.default_plan %q is not in quota.plans", c.Quota.DefaultPlan))
		}
	case QuotaPolicyItems:
		if c.Quota.DailyImageLimit <= 0 || c.Quota.DailyVideoLimit <= 0 {
			errs = append(errs, errors.New("quota daily item limits must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown quota.policy %q", c.Quota.Policy))
	}

	if c.Media.ThumbnailSize <= 0 {
		errs = append(errs, errors.New("media.thumbnail_size must be positive"))
	}
	if c.Media.JPEGQuality < 1 || c.Media.JPEGQuality > 100 {
		errs = append(errs, errors.New("media.jpeg_quality must be between 1 and 100"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}

	return errors.Join(errs...)
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
