package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the YAML file read when MENUBOT_CONFIG is not set.
const DefaultConfigFile = "menubot.yaml"

type Config struct {
	DB        DBConfig        `yaml:"db"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	API       APIConfig       `yaml:"api"`
	Share     ShareConfig     `yaml:"share"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// DBConfig is optional. Without a host or URL the bot runs without owner
// accounts, throttling and history.
type DBConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Enabled reports whether a database is configured.
func (c DBConfig) Enabled() bool {
	return c.URL != "" || c.Host != ""
}

// DSN returns the connection string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	return u.String()
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	Login string `yaml:"login"` // owner password when no database is configured
}

// APIConfig points at the remote menu service.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	BusinessID string        `yaml:"business_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ShareConfig controls share links and QR images.
type ShareConfig struct {
	PublicBaseURL string        `yaml:"public_base_url"`
	RendererURL   string        `yaml:"renderer_url"`
	Size          int           `yaml:"size"`
	DownloadSize  int           `yaml:"download_size"`
	CacheMB       int64         `yaml:"cache_mb"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

type UIConfig struct {
	AlertTTL       time.Duration `yaml:"alert_ttl"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type DevServerConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DB: DBConfig{
			Port:     5432,
			User:     "postgres",
			Database: "menus",
		},
		API: APIConfig{
			BaseURL:    "https://abakcus.onrender.com",
			BusinessID: "business-123",
			Timeout:    15 * time.Second,
		},
		Share: ShareConfig{
			PublicBaseURL: "https://abakcus.onrender.com",
			RendererURL:   "https://api.qrserver.com/v1/create-qr-code/",
			Size:          160,
			DownloadSize:  400,
			CacheMB:       16,
			CacheTTL:      time.Hour,
		},
		UI: UIConfig{
			AlertTTL:       4 * time.Second,
			ConfirmTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "menu-telegram",
		},
		DevServer: DevServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads .env, then the YAML file named by MENUBOT_CONFIG (default
// menubot.yaml), then the environment: defaults < YAML < ENV.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("MENUBOT_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit YAML path. A missing file is not an
// error.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) {
	setString(&cfg.DB.URL, "DATABASE_URL")
	setString(&cfg.DB.Host, "DB_HOST")
	setInt(&cfg.DB.Port, "DB_PORT")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.Database, "DB_NAME")

	setString(&cfg.Telegram.Token, "TOKEN")
	setString(&cfg.Telegram.Login, "LOGIN")

	setString(&cfg.API.BaseURL, "MENU_API_URL")
	setString(&cfg.API.BusinessID, "BUSINESS_ID")
	setDuration(&cfg.API.Timeout, "MENU_API_TIMEOUT")

	setString(&cfg.Share.PublicBaseURL, "SHARE_BASE_URL")
	setString(&cfg.Share.RendererURL, "QR_RENDERER_URL")
	setInt(&cfg.Share.Size, "QR_SIZE")
	setInt(&cfg.Share.DownloadSize, "QR_DOWNLOAD_SIZE")
	setInt64(&cfg.Share.CacheMB, "QR_CACHE_MB")
	setDuration(&cfg.Share.CacheTTL, "QR_CACHE_TTL")

	setDuration(&cfg.UI.AlertTTL, "ALERT_TTL")
	setDuration(&cfg.UI.ConfirmTimeout, "CONFIRM_TIMEOUT")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Service, "LOG_SERVICE")

	setString(&cfg.DevServer.Addr, "DEVSERVER_ADDR")
}

// Validate checks values that would only fail later at runtime. The bot
// token is checked by the bot command itself since other commands do not
// need it.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"api.base_url":          c.API.BaseURL,
		"share.public_base_url": c.Share.PublicBaseURL,
		"share.renderer_url":    c.Share.RendererURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.API.BusinessID == "" {
		return errors.New("api.business_id is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.UI.AlertTTL <= 0 {
		return errors.New("ui.alert_ttl must be positive")
	}
	if c.UI.ConfirmTimeout <= 0 {
		return errors.New("ui.confirm_timeout must be positive")
	}
	if c.Share.Size <= 0 || c.Share.DownloadSize <= 0 {
		return errors.New("share sizes must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
