package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engines.
const (
	EnginePgx  = "pgx"
	EngineGorm = "gorm"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level"`
		File      string `yaml:"file"`
		GormLevel string `yaml:"gorm_level"`
	} `yaml:"log"`
	Storage struct {
		Engine string `yaml:"engine"` // pgx or gorm
		Driver string `yaml:"driver"` // gorm dialect: sqlite or postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Pool struct {
		TTL string `yaml:"ttl"`
	} `yaml:"pool"`
	Client struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"client"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOptional behaves like Load but returns defaults when path does not exist.
func LoadOptional(path string) (Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = Config{}
		cfg.applyDefaults()
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.Storage.Engine == "" {
		if c.Postgres.URL != "" {
			c.Storage.Engine = EnginePgx
		} else {
			c.Storage.Engine = EngineGorm
		}
	}
	if c.Storage.Engine == EngineGorm && c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Engine == EngineGorm && c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "medquiz.db"
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:8080"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
