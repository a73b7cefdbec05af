package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
	"github.com/yanqian/ai-assistant/internal/infra/config"
	"github.com/yanqian/ai-assistant/internal/infra/google"
	"github.com/yanqian/ai-assistant/internal/infra/grantrepo"
	"github.com/yanqian/ai-assistant/internal/infra/ics"
	"github.com/yanqian/ai-assistant/internal/infra/llm/chatgpt"
	"github.com/yanqian/ai-assistant/internal/infra/prefstore"
	"github.com/yanqian/ai-assistant/internal/infra/querylog"
	"github.com/yanqian/ai-assistant/internal/infra/scheduler"
	"github.com/yanqian/ai-assistant/internal/infra/telegram"
	httpiface "github.com/yanqian/ai-assistant/internal/interface/http"
	tgiface "github.com/yanqian/ai-assistant/internal/interface/telegram"
)

const storeProbeTimeout = 5 * time.Second

func provideChatGPTClient(cfg *config.Config, logger *slog.Logger) (*chatgpt.Client, error) {
	return chatgpt.NewClient(chatgpt.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.LLM.Timeout,
		MaxRetries:        cfg.LLM.MaxRetries,
		RetryDelay:        cfg.LLM.RetryDelay,
		ModelLoadingDelay: cfg.LLM.ModelLoadingDelay,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, logger)
}

func provideCalendarQueryConfig(cfg *config.Config) calendarquery.Config {
	return calendarquery.Config{
		DefaultTimezone: cfg.CalendarQuery.DefaultTimezone,
		DefaultLanguage: cfg.CalendarQuery.DefaultLanguage,
		Temperature:     cfg.CalendarQuery.Temperature,
		Timeout:         cfg.CalendarQuery.Timeout,
	}
}

func provideSummarizerConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		EmailLimit:        cfg.Assistant.EmailLimit,
		BriefingItemLimit: cfg.Assistant.BriefingItemLimit,
		MaxPromptTokens:   cfg.Assistant.MaxPromptTokens,
	}
}

func provideTokenCounter(cfg *config.Config) summarizer.TokenCounter {
	return summarizer.NewTokenCounter(cfg.Assistant.TokenizerModel)
}

func provideAssistantConfig(cfg *config.Config) assistant.Config {
	return assistant.Config{
		DefaultTimezone:   cfg.CalendarQuery.DefaultTimezone,
		DefaultLanguage:   cfg.CalendarQuery.DefaultLanguage,
		DefaultChatID:     cfg.Telegram.ChatID,
		EmailLimit:        cfg.Assistant.EmailLimit,
		BriefingItemLimit: cfg.Assistant.BriefingItemLimit,
	}
}

// provideGoogleCredentials reads the downloaded credentials file. A missing
// file is normal when only an ICS feed is used.
func provideGoogleCredentials(cfg *config.Config, logger *slog.Logger) google.Credentials {
	path := strings.TrimSpace(cfg.Google.CredentialsPath)
	if path == "" {
		return google.Credentials{}
	}
	creds, err := google.LoadCredentials(context.Background(), path, cfg.Google.Scopes...)
	if errors.Is(err, google.ErrNoCredentials) {
		logger.Info("google credentials file not found", "path", path)
		return google.Credentials{}
	}
	if err != nil {
		logger.Error("failed to load google credentials", "path", path, "error", err)
		return google.Credentials{}
	}
	if creds.ServiceAccount != nil {
		logger.Info("using google service account credentials", "path", path)
	}
	return creds
}

// provideAuthConfig fills OAuth client fields missing from the config with
// the ones in credentials.json.
func provideAuthConfig(cfg *config.Config, creds google.Credentials) auth.Config {
	clients := make([]auth.Client, 0, len(cfg.Auth.Clients))
	for _, c := range cfg.Auth.Clients {
		clients = append(clients, auth.Client{ID: c.ID, SecretHash: c.SecretHash})
	}
	googleCfg := auth.GoogleConfig{
		ClientID:            cfg.Google.ClientID,
		ClientSecret:        cfg.Google.ClientSecret,
		RedirectURL:         cfg.Google.RedirectURL,
		Scopes:              cfg.Google.Scopes,
		TokenEncryptionKey:  cfg.Google.TokenEncryptionKey,
		PostLinkRedirectURL: cfg.Google.PostLinkRedirectURL,
	}
	if c := creds.Client; c != nil {
		if googleCfg.ClientID == "" {
			googleCfg.ClientID = c.ClientID
			googleCfg.ClientSecret = c.ClientSecret
		}
		if googleCfg.RedirectURL == "" {
			googleCfg.RedirectURL = c.RedirectURL
		}
	}
	return auth.Config{
		Secret:   cfg.Auth.Secret,
		TokenTTL: cfg.Auth.TokenTTL,
		Clients:  clients,
		Google:   googleCfg,
	}
}

// providePostgresPool returns nil when no DSN is set or the database cannot
// be reached; repositories then fall back to memory.
func providePostgresPool(cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, func()) {
	dsn := strings.TrimSpace(cfg.Store.Postgres.DSN)
	if dsn == "" {
		logger.Info("postgres dsn not set, using memory and file stores")
		return nil, func() {}
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory and file stores", "error", err)
		return nil, func() {}
	}
	if cfg.Store.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Store.Postgres.MaxConns
	}
	if cfg.Store.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Store.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory and file stores", "error", err)
		return nil, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeProbeTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory and file stores", "error", err)
		pool.Close()
		return nil, func() {}
	}
	logger.Info("postgres enabled")
	return pool, pool.Close
}

func provideValkeyClient(cfg *config.Config, logger *slog.Logger) (valkey.Client, func()) {
	if !cfg.Store.Valkey.Enabled {
		return nil, func() {}
	}
	opt, err := buildValkeyOptions(cfg.Store.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return nil, func() {}
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return nil, func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeProbeTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return nil, func() {}
	}
	logger.Info("valkey enabled", "addr", cfg.Store.Valkey.Addr)
	return client, client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func provideGrantRepository(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) auth.GrantRepository {
	if pool != nil {
		repo := grantrepo.NewPostgresRepository(pool)
		ctx, cancel := context.WithTimeout(context.Background(), storeProbeTimeout)
		defer cancel()
		err := repo.EnsureSchema(ctx)
		if err == nil {
			return repo
		}
		logger.Error("google grant schema setup failed", "error", err)
	}
	if path := strings.TrimSpace(cfg.Google.TokenPath); path != "" {
		logger.Info("storing google grant in token file", "path", path)
		return grantrepo.NewFileRepository(path)
	}
	return grantrepo.NewMemoryRepository()
}

func providePreferenceStore(cfg *config.Config, client valkey.Client) assistant.PreferenceStore {
	if client != nil {
		return prefstore.NewValkeyStore(client, cfg.Store.Valkey.Prefix)
	}
	return prefstore.NewMemoryStore()
}

func provideQueryLog(pool *pgxpool.Pool, logger *slog.Logger) assistant.QueryLog {
	if pool != nil {
		queries := querylog.NewPostgresLog(pool)
		ctx, cancel := context.WithTimeout(context.Background(), storeProbeTimeout)
		defer cancel()
		err := queries.EnsureSchema(ctx)
		if err == nil {
			return queries
		}
		logger.Error("query log schema setup failed, using memory log", "error", err)
	}
	return querylog.NewMemoryLog(0)
}

// provideGoogleTokens prefers a service account; otherwise calls go through
// the account linked with the auth service. Nil means Google is not set up.
func provideGoogleTokens(creds google.Credentials, authCfg auth.Config, authSvc auth.Service) google.TokenSourceProvider {
	if creds.ServiceAccount != nil {
		return creds.ServiceAccount
	}
	if strings.TrimSpace(authCfg.Google.ClientID) != "" {
		return authSvc
	}
	return nil
}

func provideCalendarSearcher(cfg *config.Config, tokens google.TokenSourceProvider, logger *slog.Logger) assistant.CalendarSearcher {
	if tokens != nil {
		return google.NewCalendarProvider(google.CalendarConfig{CalendarID: cfg.Google.CalendarID}, tokens, logger)
	}
	if feed := strings.TrimSpace(cfg.ICS.FeedURL); feed != "" {
		loc, err := time.LoadLocation(cfg.CalendarQuery.DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		logger.Info("reading calendar from ics feed")
		return ics.NewProvider(ics.Config{
			FeedURL:        feed,
			Timeout:        cfg.ICS.Timeout,
			MaxOccurrences: cfg.ICS.MaxOccurrences,
			Location:       loc,
		}, logger)
	}
	logger.Warn("no calendar source configured")
	return nil
}

func provideMailProvider(cfg *config.Config, tokens google.TokenSourceProvider, logger *slog.Logger) assistant.MailProvider {
	if tokens == nil {
		logger.Warn("no mail source configured")
		return nil
	}
	return google.NewMailProvider(google.MailConfig{
		MaxAgeHours:    cfg.Google.MailMaxAgeHours,
		MaxResults:     cfg.Google.MailMaxResults,
		Labels:         cfg.Google.MailLabels,
		ExcludeSenders: cfg.Google.MailExcludeSenders,
		PreviewLength:  cfg.Google.PreviewLength,
	}, tokens, logger)
}

func provideHTTPHandler(cfg *config.Config, assistantSvc assistant.Service, analyzer calendarquery.Service, authSvc auth.Service, logger *slog.Logger) *httpiface.Handler {
	return httpiface.NewHandler(assistantSvc, analyzer, authSvc, cfg.Google.PostLinkRedirectURL, logger)
}

func provideTelegramClient(cfg *config.Config, logger *slog.Logger) (*telegram.Client, error) {
	if !cfg.Telegram.Enabled {
		logger.Info("telegram disabled")
		return nil, nil
	}
	return telegram.NewClient(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, &http.Client{})
}

func provideTelegramBot(cfg *config.Config, client *telegram.Client, assistantSvc assistant.Service, logger *slog.Logger) *tgiface.Bot {
	if client == nil {
		return nil
	}
	return tgiface.NewBot(tgiface.BotConfig{MaxMessageLength: cfg.Telegram.MaxMessageLength}, assistantSvc, client, logger)
}

func provideTelegramPoller(cfg *config.Config, client *telegram.Client, logger *slog.Logger) *telegram.Poller {
	if client == nil {
		return nil
	}
	return telegram.NewPoller(client, telegram.PollerConfig{
		Timeout:       cfg.Telegram.PollTimeout,
		AllowedChatID: cfg.Telegram.ChatID,
	}, logger)
}

func provideScheduler(cfg *config.Config, bot *tgiface.Bot, logger *slog.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.DailySummary {
		return nil, nil
	}
	if bot == nil {
		logger.Warn("daily summary enabled but telegram is not; schedule skipped")
		return nil, nil
	}
	return scheduler.New(scheduler.Config{
		DailyTime: cfg.Schedule.DailyTime,
		Timezone:  cfg.Schedule.Timezone,
	}, logger)
}
