package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Regions   []RegionConfig  `mapstructure:"regions"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// APIConfig configures the Vivacity client. API keys are never stored here;
// they come from VIVACITY_<REGION> environment variables.
type APIConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	BatchSize      int     `mapstructure:"batch_size"`
	MaxBatchDays   int     `mapstructure:"max_batch_days"`
	Concurrency    int     `mapstructure:"concurrency"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// RegionConfig names one region to ingest.
type RegionConfig struct {
	Code       string `mapstructure:"code"`
	Name       string `mapstructure:"name"`
	TimeBucket string `mapstructure:"time_bucket"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	MaxConnections    int    `mapstructure:"max_connections"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

// ConnString builds a lib/pq connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.ConnectionTimeout,
	)
}

type SchedulerConfig struct {
	Schedule      string `mapstructure:"schedule"`       // cron expression
	LookbackHours int    `mapstructure:"lookback_hours"` // incremental window
	BackfillDays  int    `mapstructure:"backfill_days"`  // one-shot historical backfill
}

// Lookback returns the incremental catch-up window as a duration.
func (s SchedulerConfig) Lookback() time.Duration {
	return time.Duration(s.LookbackHours) * time.Hour
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Load reads configuration from a YAML file. Values may reference
// environment variables ($VAR or ${VAR}), which are expanded before parsing
// so secrets stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://api.vivacitylabs.com")
	v.SetDefault("api.timeout_seconds", 120)
	v.SetDefault("api.batch_size", 50)
	v.SetDefault("api.max_batch_days", 7)
	v.SetDefault("api.concurrency", 4)
	v.SetDefault("api.rate_limit", 5.0)
	v.SetDefault("api.rate_limit_burst", 10)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("scheduler.schedule", "@hourly")
	v.SetDefault("scheduler.lookback_hours", 24)
	v.SetDefault("scheduler.backfill_days", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.port", 9090)
}
