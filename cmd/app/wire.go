//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/ai-assistant/internal/bootstrap"
	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/domain/summarizer"
	"github.com/yanqian/ai-assistant/internal/infra/config"
	"github.com/yanqian/ai-assistant/internal/infra/llm/chatgpt"
	httpiface "github.com/yanqian/ai-assistant/internal/interface/http"
	"github.com/yanqian/ai-assistant/pkg/logger"
)

func initializeApp(cfg *config.Config) (*bootstrap.App, func(), error) {
	wire.Build(
		logger.New,
		provideChatGPTClient,
		provideCalendarQueryConfig,
		provideSummarizerConfig,
		provideTokenCounter,
		provideAssistantConfig,
		provideGoogleCredentials,
		provideAuthConfig,
		providePostgresPool,
		provideValkeyClient,
		provideGrantRepository,
		providePreferenceStore,
		provideQueryLog,
		provideGoogleTokens,
		provideCalendarSearcher,
		provideMailProvider,
		provideHTTPHandler,
		provideTelegramClient,
		provideTelegramBot,
		provideTelegramPoller,
		provideScheduler,
		calendarquery.NewService,
		summarizer.NewService,
		auth.NewService,
		assistant.NewService,
		wire.Bind(new(calendarquery.Completer), new(*chatgpt.Client)),
		wire.Bind(new(summarizer.ChatClient), new(*chatgpt.Client)),
		wire.Bind(new(assistant.Classifier), new(*chatgpt.Client)),
		wire.Bind(new(assistant.QueryAnalyzer), new(calendarquery.Service)),
		wire.Bind(new(assistant.Summarizer), new(summarizer.Service)),
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
