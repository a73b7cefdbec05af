package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/domain/calendarquery"
	"github.com/yanqian/ai-assistant/internal/infra/config"
	"github.com/yanqian/ai-assistant/internal/infra/scheduler"
	"github.com/yanqian/ai-assistant/internal/infra/telegram"
	tgiface "github.com/yanqian/ai-assistant/internal/interface/telegram"
)

const shutdownTimeout = 10 * time.Second

// App owns the long running parts of the assistant: the HTTP server, the
// Telegram poller and the daily briefing schedule. Any of them may be absent.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	assistant assistant.Service
	analyzer  calendarquery.Service
	auth      auth.Service
	poller    *telegram.Poller
	bot       *tgiface.Bot
	scheduler *scheduler.Scheduler
}

// NewApp is used by Wire to build the runnable app.
func NewApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	assistantSvc assistant.Service,
	analyzer calendarquery.Service,
	authSvc auth.Service,
	poller *telegram.Poller,
	bot *tgiface.Bot,
	sched *scheduler.Scheduler,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With("component", "bootstrap"),
		server:    server,
		assistant: assistantSvc,
		analyzer:  analyzer,
		auth:      authSvc,
		poller:    poller,
		bot:       bot,
		scheduler: sched,
	}
}

// Run starts every configured component and blocks until ctx ends or one of
// them fails, then shuts the rest down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	started := 0

	if a.server != nil && a.cfg.HTTP.Enabled {
		started++
		g.Go(func() error {
			a.logger.Info("http server starting", "address", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.logger.Info("shutting down http server")
			return a.server.Shutdown(shutdownCtx)
		})
	}

	if a.poller != nil && a.bot != nil {
		started++
		g.Go(func() error {
			return a.poller.Run(ctx, a.bot.HandleMessage)
		})
	}

	if a.scheduler != nil {
		started++
		g.Go(func() error {
			return a.scheduler.Run(ctx, "daily_briefing", a.SendDailyBriefings)
		})
	}

	if started == 0 {
		return errors.New("nothing to run: enable http or telegram")
	}
	a.logger.Info("assistant running", "components", started)
	err := g.Wait()
	a.logger.Info("assistant stopped")
	return err
}

// SendDailyBriefings delivers the briefing to every subscribed chat now.
func (a *App) SendDailyBriefings(ctx context.Context) error {
	if a.bot == nil {
		return errors.New("telegram is not configured; no way to deliver briefings")
	}
	return a.assistant.SendDailyBriefings(ctx, a.bot)
}

// Analyze runs the calendar query analyzer once.
func (a *App) Analyze(ctx context.Context, text, timezone string) calendarquery.CalendarQuery {
	return a.analyzer.Analyze(ctx, text, timezone)
}

// Auth exposes the account linking service to the CLI.
func (a *App) Auth() auth.Service {
	return a.auth
}
