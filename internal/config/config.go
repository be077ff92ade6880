// Package config loads episode-catalog settings from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the catalog
type Config struct {
	DBPath        string       `mapstructure:"db_path"`
	FileList      string       `mapstructure:"file_list"`
	APITokensFile string       `mapstructure:"api_tokens_file"`
	Report        ReportConfig `mapstructure:"report"`
	Server        ServerConfig `mapstructure:"server"`
	MinIO         MinIOConfig  `mapstructure:"minio"`
	Fetch         FetchConfig  `mapstructure:"fetch"`
	Log           LogConfig    `mapstructure:"log"`
}

// ReportConfig controls the text report
type ReportConfig struct {
	Output      string `mapstructure:"output"`
	SampleLimit int    `mapstructure:"sample_limit"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// MinIOConfig holds object storage credentials for s3:// sources
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// FetchConfig controls metadata downloads
type FetchConfig struct {
	Dest    string        `mapstructure:"dest"`
	Prefix  string        `mapstructure:"prefix"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "maniskill.db")
	v.SetDefault("file_list", "json_paths.txt")
	v.SetDefault("api_tokens_file", "")
	v.SetDefault("report.output", "query_results.txt")
	v.SetDefault("report.sample_limit", 10)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("minio.endpoint", "https://minio.local")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("fetch.dest", ".")
	v.SetDefault("fetch.prefix", "maniskill_metadata")
	v.SetDefault("fetch.timeout", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path when given, then applies environment overrides. Keys map
// to variables with dots replaced by underscores (minio.endpoint is
// MINIO_ENDPOINT). A missing default config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.host", "SERVER_HOST", "HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY", "MINIO_ACCESS_KEY_ID")
	_ = v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY", "MINIO_SECRET_ACCESS_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("episode-catalog")
		v.SetConfigType("yaml")
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

// Validate rejects values no command can run with
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.Report.SampleLimit <= 0 {
		return fmt.Errorf("report.sample_limit must be > 0, got %d", c.Report.SampleLimit)
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// SetupLogging applies the log settings to the standard logrus logger
func (c *Config) SetupLogging() {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
