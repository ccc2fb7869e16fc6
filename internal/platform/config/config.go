// Package config loads application configuration from environment variables.
// All variables use the WORKSHEET_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	Budget      BudgetConfig
	Session     SessionConfig
	Log         LogConfig
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL settings for the audit log. An empty URL disables it.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis settings for the shared token budget. An empty URL keeps budgets in memory.
type CacheConfig struct {
	URL string
}

// AIConfig holds configuration for all AI providers, tried in the order google, openai, deepseek, ollama.
type AIConfig struct {
	OpenAI   OpenAIConfig
	DeepSeek DeepSeekConfig
	Google   GoogleConfig
	Ollama   OllamaConfig
	// Temperatures for bulk generation and single replacement.
	SetTemperature     float64
	ReplaceTemperature float64
	MaxTokens          int
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
	Model  string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
	Model  string
	// Client is "http" for the REST provider or "sdk" for the generative-ai-go client.
	Client string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
	Model   string
}

// BudgetConfig holds the per-session token budget. A zero limit disables it.
type BudgetConfig struct {
	TokenLimit  int
	WindowHours int
}

// SessionConfig holds in-memory session settings.
type SessionConfig struct {
	TTLMinutes int
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with WORKSHEET_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("WORKSHEET_SERVER_PORT", 8080),
			Host:           envStr("WORKSHEET_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WORKSHEET_SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:      envStr("WORKSHEET_DATABASE_URL", ""),
			MaxConns: envInt("WORKSHEET_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("WORKSHEET_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("WORKSHEET_CACHE_URL", ""),
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				APIKey: envStr("WORKSHEET_AI_OPENAI_API_KEY", ""),
				Model:  envStr("WORKSHEET_AI_OPENAI_MODEL", "gpt-4o-mini"),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("WORKSHEET_AI_DEEPSEEK_API_KEY", ""),
				Model:  envStr("WORKSHEET_AI_DEEPSEEK_MODEL", "deepseek-chat"),
			},
			Google: GoogleConfig{
				APIKey: envStr("WORKSHEET_AI_GOOGLE_API_KEY", ""),
				Model:  envStr("WORKSHEET_AI_GOOGLE_MODEL", "gemini-2.5-flash"),
				Client: envStr("WORKSHEET_AI_GOOGLE_CLIENT", "http"),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("WORKSHEET_AI_OLLAMA_ENABLED", false),
				URL:     envStr("WORKSHEET_AI_OLLAMA_URL", "http://localhost:11434"),
				Model:   envStr("WORKSHEET_AI_OLLAMA_MODEL", "llama3:8b"),
			},
			SetTemperature:     envFloat("WORKSHEET_AI_SET_TEMPERATURE", 0.8),
			ReplaceTemperature: envFloat("WORKSHEET_AI_REPLACE_TEMPERATURE", 0.9),
			MaxTokens:          envInt("WORKSHEET_AI_MAX_TOKENS", 8192),
		},
		Budget: BudgetConfig{
			TokenLimit:  envInt("WORKSHEET_BUDGET_TOKEN_LIMIT", 0),
			WindowHours: envInt("WORKSHEET_BUDGET_WINDOW_HOURS", 24),
		},
		Session: SessionConfig{
			TTLMinutes: envInt("WORKSHEET_SESSION_TTL_MINUTES", 120),
		},
		Log: LogConfig{
			Level:  envStr("WORKSHEET_LOG_LEVEL", "info"),
			Format: envStr("WORKSHEET_LOG_FORMAT", "json"),
		},
		CatalogPath: envStr("WORKSHEET_CATALOG_PATH", ""),
	}

	return cfg, nil
}

// Validate checks that the configuration is usable. A missing AI provider is not an error:
// the server starts and generation reports a configuration error to the user.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("WORKSHEET_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.AI.Google.Client != "http" && c.AI.Google.Client != "sdk" {
		return fmt.Errorf("WORKSHEET_AI_GOOGLE_CLIENT must be 'http' or 'sdk', got %q", c.AI.Google.Client)
	}

	if c.Budget.TokenLimit < 0 {
		return fmt.Errorf("WORKSHEET_BUDGET_TOKEN_LIMIT must not be negative, got %d", c.Budget.TokenLimit)
	}

	if c.Session.TTLMinutes <= 0 {
		return fmt.Errorf("WORKSHEET_SESSION_TTL_MINUTES must be positive, got %d", c.Session.TTLMinutes)
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("WORKSHEET_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// SessionTTL returns the idle timeout for sessions.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// BudgetWindow returns the period a token budget covers.
func (c *Config) BudgetWindow() time.Duration {
	return time.Duration(c.Budget.WindowHours) * time.Hour
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
