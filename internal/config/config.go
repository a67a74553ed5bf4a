package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"vidtube/internal/logging"
)

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	ScratchDir  string   `mapstructure:"scratch_dir"`
	MaxUploadMB int64    `mapstructure:"max_upload_mb"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	CookieName string `mapstructure:"cookie_name"`
}

// StoreConfig selects the video record backend. DSN is the SQLite file, the
// Postgres connection string or the DynamoDB table name.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Region string `mapstructure:"region"`
}

// CDNConfig carries the remote content-delivery credentials. It is built once
// at start-up and handed to the uploader constructor.
type CDNConfig struct {
	Driver          string `mapstructure:"driver"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	CredentialsFile string `mapstructure:"credentials_file"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	BaseDir         string `mapstructure:"base_dir"`
}

type MediaConfig struct {
	FFmpegPath      string        `mapstructure:"ffmpeg_path"`
	ThumbnailAt     time.Duration `mapstructure:"thumbnail_at"`
	ThumbnailWidth  int           `mapstructure:"thumbnail_width"`
	ThumbnailHeight int           `mapstructure:"thumbnail_height"`
}

// EventsConfig enables SQS notifications when QueueURL is set.
type EventsConfig struct {
	QueueURL string `mapstructure:"queue_url"`
	Region   string `mapstructure:"region"`
}

type Config struct {
	Server ServerConfig   `mapstructure:"server"`
	Auth   AuthConfig     `mapstructure:"auth"`
	Store  StoreConfig    `mapstructure:"store"`
	CDN    CDNConfig      `mapstructure:"cdn"`
	Media  MediaConfig    `mapstructure:"media"`
	Events EventsConfig   `mapstructure:"events"`
	Log    logging.Config `mapstructure:"log"`
}

const EnvPrefix = "VIDTUBE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.scratch_dir", "tmp")
	v.SetDefault("server.max_upload_mb", 100)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.cookie_name", "accessToken")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "vidtube.db")
	v.SetDefault("store.region", "")

	v.SetDefault("cdn.driver", "fs")
	v.SetDefault("cdn.bucket", "")
	v.SetDefault("cdn.region", "us-west-1")
	v.SetDefault("cdn.endpoint", "")
	v.SetDefault("cdn.access_key", "")
	v.SetDefault("cdn.secret_key", "")
	v.SetDefault("cdn.use_ssl", true)
	v.SetDefault("cdn.credentials_file", "")
	v.SetDefault("cdn.public_base_url", "http://localhost:8080/media")
	v.SetDefault("cdn.base_dir", "media")

	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.thumbnail_at", 2*time.Second)
	v.SetDefault("media.thumbnail_width", 640)
	v.SetDefault("media.thumbnail_height", 360)

	v.SetDefault("events.queue_url", "")
	v.SetDefault("events.region", "")

	v.SetDefault("log.service", "vidtube-web")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 10)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.compress", false)
}

// Load reads an optional .env file, then the config file at path (or
// configs/config.yaml when path is empty and the file exists), then
// VIDTUBE_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ScratchDir == "" {
		return errors.New("server.scratch_dir cannot be empty")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid server.max_upload_mb: %d", c.Server.MaxUploadMB)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "dynamodb":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for %s", c.Store.Driver)
	}

	switch c.CDN.Driver {
	case "s3", "gcs":
		if c.CDN.Bucket == "" {
			return fmt.Errorf("cdn.bucket is required for %s", c.CDN.Driver)
		}
	case "minio":
		if c.CDN.Bucket == "" || c.CDN.Endpoint == "" {
			return errors.New("cdn.bucket and cdn.endpoint are required for minio")
		}
	case "fs":
		if c.CDN.BaseDir == "" {
			return errors.New("cdn.base_dir is required for fs")
		}
	default:
		return fmt.Errorf("unsupported cdn driver: %s", c.CDN.Driver)
	}

	if c.Media.ThumbnailAt < 0 {
		return fmt.Errorf("invalid media.thumbnail_at: %s", c.Media.ThumbnailAt)
	}
	if c.Media.ThumbnailWidth <= 0 || c.Media.ThumbnailHeight <= 0 {
		return fmt.Errorf("invalid thumbnail size: %dx%d", c.Media.ThumbnailWidth, c.Media.ThumbnailHeight)
	}

	return c.Log.Validate()
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the multipart body cap.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
