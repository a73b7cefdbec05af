package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	LLM           LLMConfig           `yaml:"llm"`
	CalendarQuery CalendarQueryConfig `yaml:"calendarQuery"`
	Assistant     AssistantConfig     `yaml:"assistant"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Google        GoogleConfig        `yaml:"google"`
	ICS           ICSConfig           `yaml:"ics"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Address      string          `yaml:"address"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
	Retry        RetryConfig     `yaml:"retry"`
	CORS         CORSConfig      `yaml:"cors"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LLMConfig contains settings for the OpenAI compatible completion backend.
type LLMConfig struct {
	APIKey            string        `yaml:"apiKey"`
	BaseURL           string        `yaml:"baseUrl"`
	Model             string        `yaml:"model"`
	Temperature       float32       `yaml:"temperature"`
	MaxTokens         int           `yaml:"maxTokens"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"maxRetries"`
	RetryDelay        time.Duration `yaml:"retryDelay"`
	ModelLoadingDelay time.Duration `yaml:"modelLoadingDelay"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

// CalendarQueryConfig tunes the natural language calendar analyzer.
type CalendarQueryConfig struct {
	DefaultTimezone string        `yaml:"defaultTimezone"`
	DefaultLanguage string        `yaml:"defaultLanguage"`
	Temperature     float32       `yaml:"temperature"`
	Timeout         time.Duration `yaml:"timeout"`
}

// AssistantConfig controls reply generation and routing.
type AssistantConfig struct {
	EmailLimit        int    `yaml:"emailLimit"`
	BriefingItemLimit int    `yaml:"briefingItemLimit"`
	MaxPromptTokens   int    `yaml:"maxPromptTokens"`
	TokenizerModel    string `yaml:"tokenizerModel"`
}

// TelegramConfig holds bot credentials and polling behavior.
type TelegramConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BotToken         string        `yaml:"botToken"`
	ChatID           string        `yaml:"chatId"`
	APIBaseURL       string        `yaml:"apiBaseUrl"`
	PollTimeout      time.Duration `yaml:"pollTimeout"`
	MaxMessageLength int           `yaml:"maxMessageLength"`
}

// GoogleConfig covers account linking plus Calendar and Gmail access.
type GoogleConfig struct {
	ClientID            string   `yaml:"clientId"`
	ClientSecret        string   `yaml:"clientSecret"`
	CredentialsPath     string   `yaml:"credentialsPath"`
	TokenPath           string   `yaml:"tokenPath"`
	Scopes              []string `yaml:"scopes"`
	RedirectURL         string   `yaml:"redirectUrl"`
	PostLinkRedirectURL string   `yaml:"postLinkRedirectUrl"`
	TokenEncryptionKey  string   `yaml:"tokenEncryptionKey"`
	CalendarID          string   `yaml:"calendarId"`
	MailMaxAgeHours     int      `yaml:"mailMaxAgeHours"`
	MailMaxResults      int      `yaml:"mailMaxResults"`
	MailLabels          []string `yaml:"mailLabels"`
	MailExcludeSenders  []string `yaml:"mailExcludeSenders"`
	PreviewLength       int      `yaml:"previewLength"`
}

// ICSConfig points the calendar searcher at a subscribed iCalendar feed.
type ICSConfig struct {
	FeedURL        string        `yaml:"feedUrl"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxOccurrences int           `yaml:"maxOccurrences"`
}

// ScheduleConfig controls the daily briefing job.
type ScheduleConfig struct {
	DailySummary bool   `yaml:"dailySummary"`
	DailyTime    string `yaml:"dailyTime"`
	Timezone     string `yaml:"timezone"`
}

// AuthConfig drives API token issuance.
type AuthConfig struct {
	Secret   string         `yaml:"secret"`
	TokenTTL time.Duration  `yaml:"tokenTtl"`
	Clients  []ClientConfig `yaml:"clients"`
}

// ClientConfig is one API client allowed to request tokens. SecretHash is a
// bcrypt hash of the client secret.
type ClientConfig struct {
	ID         string `yaml:"id"`
	SecretHash string `yaml:"secretHash"`
}

// StoreConfig selects persistence backends.
type StoreConfig struct {
	Valkey   ValkeyConfig   `yaml:"valkey"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// ValkeyConfig contains connection information for the preference cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")
	if v := os.Getenv("HTTP_CORS_ORIGINS"); v != "" {
		cfg.HTTP.CORS.AllowedOrigins = splitList(v)
	}

	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	setInt(&cfg.LLM.MaxRetries, "LLM_MAX_RETRIES")
	setDuration(&cfg.LLM.Timeout, "LLM_TIMEOUT")

	setString(&cfg.CalendarQuery.DefaultTimezone, "CALENDAR_TIMEZONE")
	setString(&cfg.CalendarQuery.DefaultLanguage, "CALENDAR_LANGUAGE")

	setString(&cfg.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setBool(&cfg.Telegram.Enabled, "TELEGRAM_ENABLED")
	if cfg.Telegram.BotToken != "" && os.Getenv("TELEGRAM_ENABLED") == "" {
		cfg.Telegram.Enabled = true
	}

	setString(&cfg.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&cfg.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&cfg.Google.CredentialsPath, "GOOGLE_CREDENTIALS_PATH")
	setString(&cfg.Google.TokenPath, "GOOGLE_TOKEN_PATH")
	setString(&cfg.Google.RedirectURL, "GOOGLE_REDIRECT_URL")
	setString(&cfg.Google.TokenEncryptionKey, "GOOGLE_TOKEN_ENCRYPTION_KEY")
	setString(&cfg.Google.CalendarID, "GOOGLE_CALENDAR_ID")

	setString(&cfg.ICS.FeedURL, "ICS_FEED_URL")

	setBool(&cfg.Schedule.DailySummary, "DAILY_SUMMARY_ENABLED")
	setString(&cfg.Schedule.DailyTime, "DAILY_SUMMARY_TIME")
	setString(&cfg.Schedule.Timezone, "DAILY_SUMMARY_TIMEZONE")

	setString(&cfg.Auth.Secret, "AUTH_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "AUTH_TOKEN_TTL")

	setString(&cfg.Store.Valkey.Addr, "VALKEY_ADDR")
	if cfg.Store.Valkey.Addr != "" && os.Getenv("VALKEY_ENABLED") == "" {
		cfg.Store.Valkey.Enabled = true
	}
	setBool(&cfg.Store.Valkey.Enabled, "VALKEY_ENABLED")
	setString(&cfg.Store.Postgres.DSN, "POSTGRES_DSN")
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Store.Postgres.MaxConns = int32(parsed)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
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

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled:      true,
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/auth/token",
				},
			},
		},
		LLM: LLMConfig{
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			Temperature:       0.7,
			MaxTokens:         1024,
			Timeout:           60 * time.Second,
			MaxRetries:        3,
			RetryDelay:        time.Second,
			ModelLoadingDelay: 20 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		CalendarQuery: CalendarQueryConfig{
			DefaultTimezone: "UTC",
			DefaultLanguage: "pt",
			Temperature:     0.1,
			Timeout:         20 * time.Second,
		},
		Assistant: AssistantConfig{
			EmailLimit:        15,
			BriefingItemLimit: 8,
			MaxPromptTokens:   6000,
			TokenizerModel:    "gpt-4o-mini",
		},
		Telegram: TelegramConfig{
			APIBaseURL:       "https://api.telegram.org",
			PollTimeout:      30 * time.Second,
			MaxMessageLength: 4000,
		},
		Google: GoogleConfig{
			CredentialsPath: "credentials.json",
			TokenPath:       "token.json",
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar.readonly",
				"https://www.googleapis.com/auth/gmail.readonly",
			},
			CalendarID:      "primary",
			MailMaxAgeHours: 24,
			MailMaxResults:  20,
			PreviewLength:   200,
		},
		ICS: ICSConfig{
			Timeout:        15 * time.Second,
			MaxOccurrences: 500,
		},
		Schedule: ScheduleConfig{
			DailyTime: "09:00",
			Timezone:  "UTC",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
		},
		Store: StoreConfig{
			Valkey: ValkeyConfig{
				Prefix: "assistant",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Enabled && c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.LLM.MaxRetries <= 0 {
		return errors.New("llm.maxRetries must be positive")
	}
	if c.LLM.RetryDelay < 0 || c.LLM.ModelLoadingDelay < 0 {
		return errors.New("llm retry delays cannot be negative")
	}
	if c.LLM.RequestsPerSecond < 0 {
		return errors.New("llm.requestsPerSecond cannot be negative")
	}
	if c.CalendarQuery.Temperature < 0 || c.CalendarQuery.Temperature > 2 {
		return errors.New("calendarQuery.temperature must be between 0 and 2")
	}
	if c.CalendarQuery.Timeout < 0 {
		return errors.New("calendarQuery.timeout cannot be negative")
	}
	if tz := strings.TrimSpace(c.CalendarQuery.DefaultTimezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("calendarQuery.defaultTimezone: %w", err)
		}
	}
	if c.Assistant.EmailLimit <= 0 {
		return errors.New("assistant.emailLimit must be positive")
	}
	if c.Assistant.BriefingItemLimit <= 0 {
		return errors.New("assistant.briefingItemLimit must be positive")
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.BotToken) == "" {
		return errors.New("telegram.botToken cannot be empty when telegram is enabled")
	}
	if c.Telegram.MaxMessageLength <= 100 {
		return errors.New("telegram.maxMessageLength must be greater than 100")
	}
	if c.Telegram.PollTimeout < 0 {
		return errors.New("telegram.pollTimeout cannot be negative")
	}
	if key := c.Google.TokenEncryptionKey; key != "" {
		switch len(key) {
		case 16, 24, 32:
		default:
			return errors.New("google.tokenEncryptionKey must be 16, 24, or 32 bytes")
		}
	}
	if c.Google.PreviewLength <= 0 {
		return errors.New("google.previewLength must be positive")
	}
	if c.Schedule.DailySummary {
		if _, _, err := ParseDailyTime(c.Schedule.DailyTime); err != nil {
			return fmt.Errorf("schedule.dailyTime: %w", err)
		}
	}
	if tz := strings.TrimSpace(c.Schedule.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	if c.Auth.Secret != "" && c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTtl must be positive")
	}
	for _, client := range c.Auth.Clients {
		if strings.TrimSpace(client.ID) == "" || strings.TrimSpace(client.SecretHash) == "" {
			return errors.New("auth.clients entries need id and secretHash")
		}
	}
	if c.Store.Valkey.Enabled && strings.TrimSpace(c.Store.Valkey.Addr) == "" {
		return errors.New("store.valkey.addr cannot be empty when valkey is enabled")
	}
	return nil
}

// ParseDailyTime splits an "HH:MM" clock value.
func ParseDailyTime(v string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return parsed.Hour(), parsed.Minute(), nil
}
