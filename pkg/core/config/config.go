// Package config loads workbench settings from config/workbench.yaml, an
// optional .env file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"forecast_workbench/pkg/core/assumption"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where the binaries look for the config file.
const DefaultPath = "config/workbench.yaml"

// Config holds application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Sessions  SessionConfig   `yaml:"sessions"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Workbench WorkbenchConfig `yaml:"workbench"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// BackendConfig points at the calculation and export API.
type BackendConfig struct {
	URL          string        `yaml:"url"`
	ForecastPath string        `yaml:"forecast_path"`
	ExportPath   string        `yaml:"export_path"`
	Timeout      time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// StorageConfig selects the scenario store. An empty DatabaseURL means file storage only.
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	ScenarioDir string `yaml:"scenario_dir"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// WorkbenchConfig seeds new sessions.
type WorkbenchConfig struct {
	DefaultHorizon int                `yaml:"default_horizon"`
	DefaultMode    string             `yaml:"default_mode"`
	HorizonChoices []int              `yaml:"horizon_choices"`
	Defaults       map[string]float64 `yaml:"defaults"`
	Scalars        assumption.Scalars `yaml:"scalars"`
}

// Default returns the built-in configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			RequestTimeout:  45 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Backend: BackendConfig{
			URL:          "http://localhost:5000",
			ForecastPath: "/api/forecast",
			ExportPath:   "/api/export",
			Timeout:      30 * time.Second,
		},
		Sessions: SessionConfig{
			TTL:             2 * time.Hour,
			JanitorInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			ScenarioDir: ".cache/scenarios",
		},
		Logging: LoggingConfig{Level: "info"},
		Workbench: WorkbenchConfig{
			DefaultHorizon: 3,
			DefaultMode:    string(assumption.ModeAnnual),
			HorizonChoices: []int{3, 5, 10},
			Defaults:       assumption.StandardDefaults(),
			Scalars:        assumption.StandardScalars(),
		},
	}
}

// Load reads the YAML file at path (missing is fine), then .env, then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// built-in defaults
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("WORKBENCH_PORT", c.Server.Port)
	c.Backend.URL = getEnv("FORECAST_API_URL", c.Backend.URL)
	c.Backend.Timeout = getEnvAsDuration("FORECAST_API_TIMEOUT", c.Backend.Timeout)
	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.ScenarioDir = getEnv("SCENARIO_DIR", c.Storage.ScenarioDir)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Pretty = getEnvAsBool("LOG_PRETTY", c.Logging.Pretty)
}

// fillDefaults restores zero values a partial file left behind.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Backend.ForecastPath == "" {
		c.Backend.ForecastPath = def.Backend.ForecastPath
	}
	if c.Backend.ExportPath == "" {
		c.Backend.ExportPath = def.Backend.ExportPath
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Sessions.JanitorInterval <= 0 {
		c.Sessions.JanitorInterval = def.Sessions.JanitorInterval
	}
	if c.Workbench.DefaultHorizon == 0 {
		c.Workbench.DefaultHorizon = def.Workbench.DefaultHorizon
	}
	if len(c.Workbench.HorizonChoices) == 0 {
		c.Workbench.HorizonChoices = def.Workbench.HorizonChoices
	}
	merged := assumption.StandardDefaults()
	for k, v := range c.Workbench.Defaults {
		merged[k] = v
	}
	c.Workbench.Defaults = merged
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required (or set FORECAST_API_URL)")
	}
	mode, err := assumption.ParsePeriodMode(c.Workbench.DefaultMode)
	if err != nil {
		return fmt.Errorf("workbench.default_mode: %w", err)
	}
	if _, err := assumption.ResolvePeriods(c.Workbench.DefaultHorizon, mode); err != nil {
		return fmt.Errorf("workbench.default_horizon: %w", err)
	}
	for _, h := range c.Workbench.HorizonChoices {
		if h <= 0 {
			return fmt.Errorf("workbench.horizon_choices: %d is not a positive horizon", h)
		}
	}
	known := make(map[string]bool)
	for _, spec := range assumption.StandardSeries() {
		known[spec.Key] = true
	}
	for k := range c.Workbench.Defaults {
		if !known[k] {
			return fmt.Errorf("workbench.defaults: unknown series '%s'", k)
		}
	}
	return nil
}

// DefaultMode returns the parsed default period mode. Validate has already checked it.
func (c *Config) DefaultMode() assumption.PeriodMode {
	mode, _ := assumption.ParsePeriodMode(c.Workbench.DefaultMode)
	return mode
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
