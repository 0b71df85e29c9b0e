package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	LogLevel string

	LLMDefault   string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// ModelTimeout bounds one model call; 0 leaves it to the client and the caller's context.
	// MODEL_TIMEOUT takes a Go duration ("45s", "2m") or a bare number of seconds.
	ModelTimeout time.Duration
	// MaxImageBytes caps uploads; 0 disables the cap.
	MaxImageBytes int64

	TelegramBotToken string
	WebhookURL       string

	DatabaseURL string
}

var defaults = map[string]any{
	"port":            "8000",
	"log_level":       "info",
	"llm_default":     "gemini",
	"gemini_model":    "gemini-2.5-flash",
	"openai_model":    "gpt-4o-mini",
	"model_timeout":   "0s",
	"max_image_bytes": 20 << 20,
	"postgres_user":   "sanskrit",
	"postgres_db":     "sanskrit",
	"pghost":          "db",
	"pgport":          "5432",
}

// Load reads environment variables, optionally overlaid on a config file.
// Environment always wins over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for _, k := range []string{
		"gemini_api_key", "openai_api_key", "telegram_bot_token", "webhook_url",
		"database_url", "postgres_password",
	} {
		_ = v.BindEnv(k)
	}
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	timeout, err := parseSeconds(v.GetString("model_timeout"))
	if err != nil {
		return nil, fmt.Errorf("MODEL_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:             strings.TrimSpace(v.GetString("port")),
		LogLevel:         v.GetString("log_level"),
		LLMDefault:       strings.ToLower(strings.TrimSpace(v.GetString("llm_default"))),
		GeminiAPIKey:     strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:      strings.TrimSpace(v.GetString("gemini_model")),
		OpenAIAPIKey:     strings.TrimSpace(v.GetString("openai_api_key")),
		OpenAIModel:      strings.TrimSpace(v.GetString("openai_model")),
		ModelTimeout:     timeout,
		MaxImageBytes:    v.GetInt64("max_image_bytes"),
		TelegramBotToken: strings.TrimSpace(v.GetString("telegram_bot_token")),
		WebhookURL:       strings.TrimSpace(v.GetString("webhook_url")),
		DatabaseURL:      resolveDSN(v),
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		return errors.New("no model configured: set GEMINI_API_KEY or OPENAI_API_KEY")
	}
	switch c.LLMDefault {
	case "", "gemini", "gpt", "openai":
	default:
		return fmt.Errorf("LLM_DEFAULT %q: use gemini or gpt", c.LLMDefault)
	}
	if c.ModelTimeout < 0 {
		return errors.New("MODEL_TIMEOUT must not be negative")
	}
	if c.ModelTimeout > 0 && c.ModelTimeout < time.Second {
		return fmt.Errorf("MODEL_TIMEOUT %v is below one second", c.ModelTimeout)
	}
	if c.MaxImageBytes < 0 {
		return errors.New("MAX_IMAGE_BYTES must not be negative")
	}
	return nil
}

// ValidateBot additionally requires the Telegram token.
func (c *Config) ValidateBot() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.TelegramBotToken == "" {
		return errors.New("missing required env TELEGRAM_BOT_TOKEN")
	}
	return nil
}

// parseSeconds reads a bare number as seconds, like X-Request-Timeout; anything else must be a Go duration.
func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// resolveDSN prefers DATABASE_URL, then POSTGRES_PASSWORD-based settings.
// Without either the journal stays disabled.
func resolveDSN(v *viper.Viper) string {
	if dsn := strings.TrimSpace(v.GetString("database_url")); dsn != "" {
		return dsn
	}
	pass := v.GetString("postgres_password")
	if pass == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("postgres_user"), pass),
		Host:     net.JoinHostPort(v.GetString("pghost"), v.GetString("pgport")),
		Path:     "/" + v.GetString("postgres_db"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
