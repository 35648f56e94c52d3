// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/spf13/viper"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for a pipeline run
type Config struct {
	// Pipeline settings
	InputPath             string   `mapstructure:"inputpath"`
	OutputDirectory       string   `mapstructure:"outputdir"`
	ForecastHorizonMonths int      `mapstructure:"forecasthorizonmonths"`
	Threads               int      `mapstructure:"threads"`
	LogLevel              LogLevel `mapstructure:"loglevel"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("inputpath", "data/traffic-logs.parquet")
		v.SetDefault("outputdir", "public/data")
		v.SetDefault("forecasthorizonmonths", 6)
		v.SetDefault("threads", 4)
		v.SetDefault("loglevel", string(LogLevelInfo))
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)

		v.BindEnv("inputpath", "ATLASLENS_INPUT_PATH")
		v.BindEnv("outputdir", "ATLASLENS_OUTPUT_DIR")
		v.BindEnv("forecasthorizonmonths", "ATLASLENS_FORECAST_HORIZON_MONTHS")
		v.BindEnv("threads", "ATLASLENS_THREADS")
		v.BindEnv("loglevel", "ATLASLENS_LOG_LEVEL")
		v.BindEnv("logsdir", "ATLASLENS_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "ATLASLENS_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "ATLASLENS_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "ATLASLENS_LOGS_MAX_AGE_IN_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.ForecastHorizonMonths <= 0 {
		return fmt.Errorf("forecast horizon must be positive, got %d", c.ForecastHorizonMonths)
	}
	if c.Threads <= 0 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	return nil
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
