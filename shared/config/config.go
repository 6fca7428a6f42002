package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Images     ImagesConfig     `yaml:"images"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port              int    `yaml:"port"`
	RunTimeoutSeconds int    `yaml:"run_timeout_seconds"`
	AllowOrigins      string `yaml:"allow_origins"`
}

type YouTubeConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

type AnalysisConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type ImagesConfig struct {
	APIKey        string `yaml:"api_key"`
	ProposalModel string `yaml:"proposal_model"`
	// RenderModels maps the public image model names to provider model ids.
	RenderModels map[string]string `yaml:"render_models"`
}

type AuthConfig struct {
	SitePassword string `yaml:"site_password"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver"`
	DatabaseURL  string `yaml:"database_url"`
	PostgRESTURL string `yaml:"postgrest_url"`
	PostgRESTKey string `yaml:"postgrest_key"`
	DataDir      string `yaml:"data_dir"`
	// SimpleProtocol disables prepared statements, as required behind
	// transaction-mode poolers.
	SimpleProtocol bool `yaml:"simple_protocol"`
}

type MonitoringConfig struct {
	ProbeSchedule string `yaml:"probe_schedule"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverPostgres  = "postgres"
	DriverPostgREST = "postgrest"
	DriverFile      = "file"
	DriverMemory    = "memory"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment-only deployments carry no config file.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.Server.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			c.Server.Port = port
		}
	}
	if c.YouTube.APIKey == "" {
		c.YouTube.APIKey = os.Getenv("YOUTUBE_API_KEY")
	}
	if c.Analysis.APIKey == "" {
		c.Analysis.APIKey = os.Getenv("ANALYSIS_API_KEY")
	}
	if c.Images.APIKey == "" {
		c.Images.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	// Both the analysis and the image provider speak the Gemini API, so one
	// key may serve both.
	if c.Analysis.APIKey == "" {
		c.Analysis.APIKey = c.Images.APIKey
	}
	if c.Auth.SitePassword == "" {
		c.Auth.SitePassword = os.Getenv("SITE_PASSWORD")
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.PostgRESTURL == "" {
		c.Storage.PostgRESTURL = os.Getenv("SUPABASE_URL")
	}
	if c.Storage.PostgRESTKey == "" {
		c.Storage.PostgRESTKey = os.Getenv("SUPABASE_SERVICE_KEY")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = os.Getenv("LOG_LEVEL")
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RunTimeoutSeconds == 0 {
		c.Server.RunTimeoutSeconds = 60
	}
	if c.Server.AllowOrigins == "" {
		c.Server.AllowOrigins = "*"
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = "gemini-2.5-flash"
	}
	if c.Images.ProposalModel == "" {
		c.Images.ProposalModel = "gemini-2.5-flash"
	}
	if c.Images.RenderModels == nil {
		c.Images.RenderModels = map[string]string{}
	}
	if c.Images.RenderModels["nano-banana"] == "" {
		c.Images.RenderModels["nano-banana"] = "gemini-2.5-flash-image"
	}
	if c.Images.RenderModels["nano-banana-pro"] == "" {
		c.Images.RenderModels["nano-banana-pro"] = "gemini-3-pro-image-preview"
	}
	if c.Storage.Driver == "" {
		switch {
		case c.Storage.DatabaseURL != "":
			c.Storage.Driver = DriverPostgres
		case c.Storage.PostgRESTURL != "":
			c.Storage.Driver = DriverPostgREST
		default:
			c.Storage.Driver = DriverMemory
		}
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Monitoring.ProbeSchedule == "" {
		c.Monitoring.ProbeSchedule = "0 * * * * *" // Every minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// validate checks structure only. Provider keys and the site password are
// checked by the component that needs them, so a missing key disables only
// that component.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Server.RunTimeoutSeconds < 0 {
		return fmt.Errorf("server.run_timeout_seconds must be positive")
	}
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the postgres driver (set DATABASE_URL or storage.database_url)")
		}
	case DriverPostgREST:
		if c.Storage.PostgRESTURL == "" || c.Storage.PostgRESTKey == "" {
			return fmt.Errorf("PostgREST URL and key are required for the postgrest driver (set SUPABASE_URL and SUPABASE_SERVICE_KEY)")
		}
	case DriverFile, DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// RenderModel resolves a public image model name to the provider model id.
func (c *ImagesConfig) RenderModel(name string) (string, bool) {
	model, ok := c.RenderModels[name]
	return model, ok && model != ""
}
