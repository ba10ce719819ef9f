// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	AI        AIConfig        `yaml:"ai"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	BaseURL     string   `yaml:"base_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	// TrustProxy takes the client address from X-Real-IP / X-Forwarded-For.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AdminConfig holds the shared admin secret and the session token settings.
// An empty Secret is allowed; privileged endpoints then answer "not configured".
type AdminConfig struct {
	Secret     string        `yaml:"secret"`
	SigningKey string        `yaml:"signing_key"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	DSN    string       `yaml:"dsn"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Backend        string        `yaml:"backend"`
	RequestsPerMin int           `yaml:"requests_per_min"`
	GenerationMax  int           `yaml:"generation_max"`
	Window         time.Duration `yaml:"window"`
}

type StorageConfig struct {
	Type          string `yaml:"type"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	AccessKeyID   string `yaml:"access_key_id"`
	SecretKey     string `yaml:"secret_access_key"`
	PublicBaseURL string `yaml:"public_base_url"`
	UsePathStyle  bool   `yaml:"use_path_style"`
}

// AIConfig configures the OpenAI-compatible completion gateway.
type AIConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	TextModel  string        `yaml:"text_model"`
	ImageModel string        `yaml:"image_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Admin: AdminConfig{
			TokenTTL: 30 * time.Minute,
		},
		Store: StoreConfig{
			Type: "memory",
			SQLite: SQLiteConfig{
				Path: "portfolio.db",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			Backend:        "memory",
			RequestsPerMin: 100,
			GenerationMax:  20,
			Window:         time.Minute,
		},
		Storage: StorageConfig{
			Type:   "memory",
			Region: "us-east-1",
		},
		AI: AIConfig{
			BaseURL:    "https://ai.gateway.lovable.dev/v1",
			TextModel:  "google/gemini-2.5-flash",
			ImageModel: "google/gemini-2.5-flash-image-preview",
			Timeout:    60 * time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		c.Server.TrustProxy = v == "true" || v == "1"
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		c.Admin.Secret = v
	}
	if v := os.Getenv("ADMIN_SIGNING_KEY"); v != "" {
		c.Admin.SigningKey = v
	}
	if v := os.Getenv("ADMIN_TOKEN_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.Admin.TokenTTL = ttl
		}
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_BACKEND"); v != "" {
		c.RateLimit.Backend = v
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_GENERATION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.GenerationMax = n
		}
	}

	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.Storage.Region = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("S3_PUBLIC_BASE_URL"); v != "" {
		c.Storage.PublicBaseURL = v
	}

	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("AI_TEXT_MODEL"); v != "" {
		c.AI.TextModel = v
	}
	if v := os.Getenv("AI_IMAGE_MODEL"); v != "" {
		c.AI.ImageModel = v
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store dsn is required when store type is 'postgres'")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'postgres' or 'sqlite')", c.Store.Type)
	}

	if c.Store.Type == "sqlite" && c.Store.SQLite.Path == "" {
		return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
	}

	if c.RateLimit.Backend != "memory" && c.RateLimit.Backend != "redis" {
		return fmt.Errorf("invalid rate limit backend: %s (must be 'memory' or 'redis')", c.RateLimit.Backend)
	}

	if c.RateLimit.Backend == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when rate limit backend is 'redis'")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			return fmt.Errorf("requests_per_min must be at least 1")
		}
		if c.RateLimit.GenerationMax < 1 {
			return fmt.Errorf("generation_max must be at least 1")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Admin.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive")
	}

	switch c.Storage.Type {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage bucket is required when storage type is 's3'")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be 'memory' or 's3')", c.Storage.Type)
	}

	if c.AI.BaseURL == "" {
		return fmt.Errorf("ai base_url is required")
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PublicBaseURL returns the prefix used to build public URLs for stored objects.
func (c *Config) PublicBaseURL() string {
	if c.Storage.PublicBaseURL != "" {
		return strings.TrimRight(c.Storage.PublicBaseURL, "/")
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/storage"
}
