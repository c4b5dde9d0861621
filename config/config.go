package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Research  ResearchConfig  `mapstructure:"research"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.JWTSecret) == "" {
		return fmt.Errorf("server.jwt_secret is required")
	}
	return nil
}

// LLMConfig contains the generation provider settings
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // openai, anthropic, gemini
	APIKey         string        `mapstructure:"api_key"`
	DefaultModel   string        `mapstructure:"default_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("llm.api_key (or OPENAI_API_KEY) is required")
	}
	if strings.TrimSpace(l.DefaultModel) == "" {
		return fmt.Errorf("llm.default_model is required")
	}
	return nil
}

// SearchConfig selects the web search provider
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // brave, serper
	APIKey   string `mapstructure:"api_key"`
}

func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("search.api_key is required")
	}
	return nil
}

// FetchConfig controls the headless scraper
type FetchConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
	MaxChars  int `mapstructure:"max_chars"`
}

// ResearchConfig contains pipeline knobs and the maintenance cleaner
type ResearchConfig struct {
	RAGTopK      int           `mapstructure:"rag_top_k"`
	CleanerCron  string        `mapstructure:"cleaner_cron"`
	StaleMaxAge  time.Duration `mapstructure:"stale_max_age"`
	ProgressTTL  time.Duration `mapstructure:"progress_ttl"`
}

// StorageConfig groups the backing stores
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the Postgres connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10001")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.default_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-large")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", "120s")
	viper.SetDefault("search.provider", "brave")
	viper.SetDefault("fetch.timeout_ms", 15000)
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("research.rag_top_k", 5)
	viper.SetDefault("research.cleaner_cron", "*/10 * * * *")
	viper.SetDefault("research.stale_max_age", "1h")
	viper.SetDefault("research.progress_ttl", "15m")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("telemetry.enabled", true)
}

// LoadConfig loads config from file, environment (DEEPRESEARCH_*), and defaults
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
		// no config file: defaults + env only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
