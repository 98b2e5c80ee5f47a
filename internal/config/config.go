package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Bus      BusConfig      `yaml:"bus"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Wip      WipConfig      `yaml:"wip"`
	Reports  ReportsConfig  `yaml:"reports"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	MetricsPort int    `yaml:"metrics_port" validate:"gt=0,lte=65535"`
	AdminToken  string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type BusConfig struct {
	URL string `yaml:"url"`
}

type WebhookConfig struct {
	// GitHubSecret enables HMAC signature verification when set.
	GitHubSecret string `yaml:"github_secret"`
}

type WipConfig struct {
	// Limits maps pod id to item type to ceiling. Pods absent from the
	// table fall back to DefaultLimits; item types absent from a pod's
	// entry are unbounded.
	Limits        map[string]map[string]int `yaml:"limits" validate:"dive,dive,min=0"`
	DefaultLimits map[string]int            `yaml:"default_limits" validate:"dive,min=0"`
	LockTTLHours  int                       `yaml:"lock_ttl_hours" validate:"gt=0"`
}

type ReportsConfig struct {
	DailyIntervalHours  int `yaml:"daily_interval_hours" validate:"gte=0"`
	WeeklyIntervalHours int `yaml:"weekly_interval_hours" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Wip.LockTTLHours) * time.Hour
}

func (c *Config) DailyInterval() time.Duration {
	return time.Duration(c.Reports.DailyIntervalHours) * time.Hour
}

func (c *Config) WeeklyInterval() time.Duration {
	return time.Duration(c.Reports.WeeklyIntervalHours) * time.Hour
}

// LimitsFor returns the WIP ceilings for a pod. Unknown pods receive
// the default limit set, never an error.
func (c *Config) LimitsFor(podID string) map[string]int {
	if limits, ok := c.Wip.Limits[podID]; ok {
		return limits
	}
	return c.Wip.DefaultLimits
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Bus: BusConfig{
			URL: "nats://localhost:4222",
		},
		Wip: WipConfig{
			Limits: map[string]map[string]int{
				"Ratio": {"projects": 3, "pull_requests": 5, "deployments": 2},
				"Nanda": {"projects": 2, "pull_requests": 4, "deployments": 1},
				"Meta":  {"projects": 2, "pull_requests": 3, "deployments": 1},
			},
			DefaultLimits: map[string]int{"projects": 2, "pull_requests": 3, "deployments": 1},
			LockTTLHours:  24,
		},
		Reports: ReportsConfig{
			DailyIntervalHours:  24,
			WeeklyIntervalHours: 168,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLOWGATE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("FLOWGATE_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("FLOWGATE_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("FLOWGATE_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("FLOWGATE_BUS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("FLOWGATE_GITHUB_SECRET"); v != "" {
		cfg.Webhook.GitHubSecret = v
	}
	if v := os.Getenv("FLOWGATE_LOCK_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Wip.LockTTLHours = n
		}
	}
	if v := os.Getenv("FLOWGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
