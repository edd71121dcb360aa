package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Example env config:
// SITE_ENV=production
// PORT=8080
// SUPABASE_URL=https://project.supabase.co
// SUPABASE_ANON_KEY=...
// DATABASE_URL=postgres://... (direct source, takes precedence over REST)
// DISCORD_WEBHOOK_URL=https://discord.com/api/webhooks/...
// CATALOG_TTL=5m
// CATALOG_CACHE=file|redis|scylla|none
// CATALOG_CACHE_DIR=.cache
// REDIS_URL=redis://localhost:6379/0
// SCYLLA_HOSTS=scylla1,scylla2
// IMAGE_BASE_URL=https://pub-xxxx.r2.dev
// SUBMIT_MAX_PER_WINDOW=8
// SUBMIT_WINDOW=60s
// APP_SECRET=...
// ADMIN_USER=admin
// ADMIN_PASSWORD_HASH=$2a$10$...
type Config struct {
	Env      string
	Port     string
	LogLevel string

	Backend BackendConfig
	Catalog CatalogConfig
	Images  ImagesConfig
	Pages   PagesConfig
	Submit  SubmitConfig
	Admin   AdminConfig
}

type BackendConfig struct {
	URL         string
	AnonKey     string
	Table       string
	DatabaseURL string
	Timeout     time.Duration
}

type CatalogConfig struct {
	TTL          time.Duration
	Version      int
	FetchTimeout time.Duration
	Endpoint     string
	SnapshotPath string
	Cache        string
	CacheDir     string
	RedisURL     string
	Scylla       ScyllaConfig
}

type ScyllaConfig struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Consistency string
	Replication int
}

type ImagesConfig struct {
	BaseURL  string
	Version  string
	Fallback string
}

type PagesConfig struct {
	PerPage     int
	WindowLimit int
	SiteName    string
}

type SubmitConfig struct {
	WebhookURL   string
	MaxPerWindow int
	Window       time.Duration
	MaxTracked   int
	Source       string
	// TrustProxyHeaders keys the limiter on X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

type AdminConfig struct {
	Secret       string
	User         string
	PasswordHash string
	TokenTTL     time.Duration
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Aliases, highest precedence first.
var (
	backendURLKeys = []string{"DRUMKITS_SUPABASE_URL", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"}
	backendKeyKeys = []string{"DRUMKITS_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_PUBLIC_ANON_KEY"}
	webhookKeys    = []string{"DRUMKITS_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "WEBHOOK_URL"}
	portKeys       = []string{"PORT", "SITE_PORT"}
)

func Default() Config {
	return Config{
		Env:      EnvProduction,
		Port:     "8080",
		LogLevel: "info",
		Backend: BackendConfig{
			Table:   "drum_kits",
			Timeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			TTL:          5 * time.Minute,
			Version:      1,
			FetchTimeout: 15 * time.Second,
			SnapshotPath: "dl-data/dl-data.json",
			Cache:        "file",
			CacheDir:     ".cache",
			Scylla: ScyllaConfig{
				Port:        9042,
				Keyspace:    "drumkits",
				Consistency: "QUORUM",
				Replication: 3,
			},
		},
		Images: ImagesConfig{
			BaseURL:  "https://pub-f33f60358a234f7f8555b2ef8b758e15.r2.dev",
			Version:  "1",
			Fallback: "/errors/default.jpg",
		},
		Pages: PagesConfig{
			PerPage:     6,
			WindowLimit: 7,
			SiteName:    "DRUMKITS.SITE",
		},
		Submit: SubmitConfig{
			MaxPerWindow: 8,
			Window:       60 * time.Second,
			MaxTracked:   10000,
			Source:       "DRUMKITS.SITE Submission Form",
		},
		Admin: AdminConfig{
			User:     "admin",
			TokenTTL: time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the optional TOML file named
// by DRUMKITS_CONFIG, then the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("DRUMKITS_CONFIG")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.overlayEnv()
	return cfg.normalize(), nil
}

// LoadDotenv reads .env files into the environment outside production.
// Variables already set are left alone.
func LoadDotenv(paths ...string) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("SITE_ENV")), EnvProduction) {
		return
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

type fileConfig struct {
	Env      string `toml:"env"`
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`
	Backend  struct {
		URL         string `toml:"url"`
		AnonKey     string `toml:"anon_key"`
		Table       string `toml:"table"`
		DatabaseURL string `toml:"database_url"`
		Timeout     string `toml:"timeout"`
	} `toml:"backend"`
	Catalog struct {
		TTL          string   `toml:"ttl"`
		Version      int      `toml:"version"`
		Endpoint     string   `toml:"endpoint"`
		SnapshotPath string   `toml:"snapshot_path"`
		Cache        string   `toml:"cache"`
		CacheDir     string   `toml:"cache_dir"`
		RedisURL     string   `toml:"redis_url"`
		ScyllaHosts  []string `toml:"scylla_hosts"`
		Keyspace     string   `toml:"scylla_keyspace"`
	} `toml:"catalog"`
	Images struct {
		BaseURL  string `toml:"base_url"`
		Version  string `toml:"version"`
		Fallback string `toml:"fallback"`
	} `toml:"images"`
	Pages struct {
		PerPage     int    `toml:"per_page"`
		WindowLimit int    `toml:"window_limit"`
		SiteName    string `toml:"site_name"`
	} `toml:"pages"`
	Submit struct {
		WebhookURL   string `toml:"webhook_url"`
		MaxPerWindow int    `toml:"max_per_window"`
		Window       string `toml:"window"`
		TrustProxy   *bool  `toml:"trust_proxy_headers"`
	} `toml:"submit"`
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	var raw fileConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	setString(&c.Env, raw.Env)
	setString(&c.Port, raw.Port)
	setString(&c.LogLevel, raw.LogLevel)
	setString(&c.Backend.URL, raw.Backend.URL)
	setString(&c.Backend.AnonKey, raw.Backend.AnonKey)
	setString(&c.Backend.Table, raw.Backend.Table)
	setString(&c.Backend.DatabaseURL, raw.Backend.DatabaseURL)
	setDuration(&c.Backend.Timeout, raw.Backend.Timeout)
	setDuration(&c.Catalog.TTL, raw.Catalog.TTL)
	setInt(&c.Catalog.Version, raw.Catalog.Version)
	setString(&c.Catalog.Endpoint, raw.Catalog.Endpoint)
	setString(&c.Catalog.SnapshotPath, raw.Catalog.SnapshotPath)
	setString(&c.Catalog.Cache, raw.Catalog.Cache)
	setString(&c.Catalog.CacheDir, raw.Catalog.CacheDir)
	setString(&c.Catalog.RedisURL, raw.Catalog.RedisURL)
	if len(raw.Catalog.ScyllaHosts) > 0 {
		c.Catalog.Scylla.Hosts = raw.Catalog.ScyllaHosts
	}
	setString(&c.Catalog.Scylla.Keyspace, raw.Catalog.Keyspace)
	setString(&c.Images.BaseURL, raw.Images.BaseURL)
	setString(&c.Images.Version, raw.Images.Version)
	setString(&c.Images.Fallback, raw.Images.Fallback)
	setInt(&c.Pages.PerPage, raw.Pages.PerPage)
	setInt(&c.Pages.WindowLimit, raw.Pages.WindowLimit)
	setString(&c.Pages.SiteName, raw.Pages.SiteName)
	setString(&c.Submit.WebhookURL, raw.Submit.WebhookURL)
	setInt(&c.Submit.MaxPerWindow, raw.Submit.MaxPerWindow)
	setDuration(&c.Submit.Window, raw.Submit.Window)
	if raw.Submit.TrustProxy != nil {
		c.Submit.TrustProxyHeaders = *raw.Submit.TrustProxy
	}
	return nil
}

func (c *Config) overlayEnv() {
	setString(&c.Env, os.Getenv("SITE_ENV"))
	setString(&c.Port, firstEnv(portKeys...))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))

	setString(&c.Backend.URL, firstEnv(backendURLKeys...))
	setString(&c.Backend.AnonKey, firstEnv(backendKeyKeys...))
	setString(&c.Backend.Table, os.Getenv("BACKEND_TABLE"))
	setString(&c.Backend.DatabaseURL, os.Getenv("DATABASE_URL"))
	setDuration(&c.Backend.Timeout, os.Getenv("BACKEND_TIMEOUT"))

	setDuration(&c.Catalog.TTL, os.Getenv("CATALOG_TTL"))
	setInt(&c.Catalog.Version, envInt("CATALOG_CACHE_VERSION"))
	setDuration(&c.Catalog.FetchTimeout, os.Getenv("CATALOG_FETCH_TIMEOUT"))
	setString(&c.Catalog.Endpoint, os.Getenv("CATALOG_ENDPOINT"))
	setString(&c.Catalog.SnapshotPath, os.Getenv("SNAPSHOT_PATH"))
	setString(&c.Catalog.Cache, os.Getenv("CATALOG_CACHE"))
	setString(&c.Catalog.CacheDir, os.Getenv("CATALOG_CACHE_DIR"))
	setString(&c.Catalog.RedisURL, os.Getenv("REDIS_URL"))
	if v := os.Getenv("SCYLLA_HOSTS"); v != "" {
		c.Catalog.Scylla.Hosts = splitCSV(v)
	}
	setInt(&c.Catalog.Scylla.Port, envInt("SCYLLA_PORT"))
	setString(&c.Catalog.Scylla.Keyspace, os.Getenv("SCYLLA_KEYSPACE"))
	setString(&c.Catalog.Scylla.Consistency, os.Getenv("SCYLLA_CONSISTENCY"))
	setInt(&c.Catalog.Scylla.Replication, envInt("SCYLLA_RF"))

	setString(&c.Images.BaseURL, os.Getenv("IMAGE_BASE_URL"))
	setString(&c.Images.Version, os.Getenv("IMAGE_VERSION"))
	setString(&c.Images.Fallback, os.Getenv("IMAGE_FALLBACK"))

	setInt(&c.Pages.PerPage, envInt("PAGE_SIZE"))
	setInt(&c.Pages.WindowLimit, envInt("PAGE_WINDOW"))
	setString(&c.Pages.SiteName, os.Getenv("SITE_NAME"))

	setString(&c.Submit.WebhookURL, firstEnv(webhookKeys...))
	setInt(&c.Submit.MaxPerWindow, envInt("SUBMIT_MAX_PER_WINDOW"))
	setDuration(&c.Submit.Window, os.Getenv("SUBMIT_WINDOW"))
	setInt(&c.Submit.MaxTracked, envInt("SUBMIT_MAX_TRACKED"))
	setBool(&c.Submit.TrustProxyHeaders, os.Getenv("TRUST_PROXY_HEADERS"))

	setString(&c.Admin.Secret, os.Getenv("APP_SECRET"))
	setString(&c.Admin.User, os.Getenv("ADMIN_USER"))
	setString(&c.Admin.PasswordHash, os.Getenv("ADMIN_PASSWORD_HASH"))
	setDuration(&c.Admin.TokenTTL, os.Getenv("ADMIN_TOKEN_TTL"))
}

func (c Config) normalize() Config {
	d := Default()
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if c.Env == "" {
		c.Env = d.Env
	}
	c.Port = strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if c.Port == "" {
		c.Port = d.Port
	}
	c.Backend.URL = strings.TrimRight(strings.TrimSpace(c.Backend.URL), "/")
	if c.Backend.Table == "" {
		c.Backend.Table = d.Backend.Table
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Catalog.TTL <= 0 {
		c.Catalog.TTL = d.Catalog.TTL
	}
	if c.Catalog.Version <= 0 {
		c.Catalog.Version = d.Catalog.Version
	}
	if c.Catalog.FetchTimeout <= 0 {
		c.Catalog.FetchTimeout = d.Catalog.FetchTimeout
	}
	c.Catalog.Cache = strings.ToLower(strings.TrimSpace(c.Catalog.Cache))
	if c.Catalog.Cache == "" {
		c.Catalog.Cache = d.Catalog.Cache
	}
	if c.Catalog.Scylla.Port <= 0 {
		c.Catalog.Scylla.Port = d.Catalog.Scylla.Port
	}
	if c.Catalog.Scylla.Replication <= 0 {
		c.Catalog.Scylla.Replication = d.Catalog.Scylla.Replication
	}
	if c.Pages.PerPage <= 0 {
		c.Pages.PerPage = d.Pages.PerPage
	}
	if c.Pages.WindowLimit < 3 {
		c.Pages.WindowLimit = d.Pages.WindowLimit
	}
	if c.Submit.MaxPerWindow <= 0 {
		c.Submit.MaxPerWindow = d.Submit.MaxPerWindow
	}
	if c.Submit.Window <= 0 {
		c.Submit.Window = d.Submit.Window
	}
	if c.Submit.MaxTracked <= 0 {
		c.Submit.MaxTracked = d.Submit.MaxTracked
	}
	if c.Admin.TokenTTL <= 0 {
		c.Admin.TokenTTL = d.Admin.TokenTTL
	}
	return c
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func setBool(dst *bool, raw string) {
	if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
		*dst = b
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
