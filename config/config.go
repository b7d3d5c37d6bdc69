package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	HTTPAddr    string
	LogLevel    string
	Proxy       ProxyConfig
	Scheduler   SchedulerConfig
	Scraper     ScraperConfig
	Agency      AgencyConfig
	S3          S3Config
	Portals     map[string]*PortalConfig
}

type ProxyConfig struct {
	URL string
}

type SchedulerConfig struct {
	Interval        time.Duration
	Cron            string
	ConsolidateCron string
	ProjectID       string
}

type ScraperConfig struct {
	DelayMS         int
	DetailChunkSize int
	DetailDelayMS   int
	MaxPages        int
}

type AgencyConfig struct {
	NewCutoffDays int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type PortalConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Handler     string            `yaml:"handler"` // api, html, browser
	BaseURL     string            `yaml:"base_url"`
	RateLimitMS int               `yaml:"rate_limit_ms"`
	Endpoints   map[string]string `yaml:"endpoints"`
	Selectors   map[string]string `yaml:"selectors"`
	Currency    string            `yaml:"currency"`
	MaxPages    int               `yaml:"max_pages"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "propwatch.db"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron:            os.Getenv("SCRAPE_CRON"),
			ConsolidateCron: os.Getenv("CONSOLIDATE_CRON"),
			ProjectID:       os.Getenv("PROJECT_ID"),
		},
		Scraper: ScraperConfig{
			DelayMS:         getEnvInt("SCRAPE_DELAY_MS", 500),
			DetailChunkSize: getEnvInt("DETAIL_CHUNK_SIZE", 3),
			DetailDelayMS:   getEnvInt("DETAIL_DELAY_MS", 1500),
			MaxPages:        getEnvInt("SCRAPE_MAX_PAGES", 40),
		},
		Agency: AgencyConfig{
			NewCutoffDays: getEnvInt("AGENCY_NEW_CUTOFF_DAYS", 30),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Portals: make(map[string]*PortalConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadPortalConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadPortalConfigs() error {
	configDir := "config/portals"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var portal PortalConfig
		if err := yaml.Unmarshal(data, &portal); err != nil {
			return err
		}

		c.Portals[portal.ID] = &portal
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
