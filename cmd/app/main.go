package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yanqian/ai-assistant/internal/bootstrap"
	"github.com/yanqian/ai-assistant/internal/domain/auth"
	"github.com/yanqian/ai-assistant/internal/infra/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("assistant: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Personal assistant bot for calendar and email questions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, newAnalyzeCmd(), newBriefingCmd(), newGoogleAuthCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, Telegram bot and daily briefing schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return app.Run(cmd.Context())
			})
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var timezone string
	cmd := &cobra.Command{
		Use:   "analyze <question>",
		Short: "Print the calendar search window for a question as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				query := app.Analyze(cmd.Context(), strings.Join(args, " "), timezone)
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(query)
			})
		},
	}
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone, defaults to calendarQuery.defaultTimezone")
	return cmd
}

func newBriefingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "briefing",
		Short: "Send the daily briefing to subscribed chats now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return app.SendDailyBriefings(cmd.Context())
			})
		},
	}
}

func newGoogleAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "google-auth",
		Short: "Link a Google account by pasting the authorization code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *bootstrap.App) error {
				return linkGoogleAccount(cmd, app.Auth())
			})
		},
	}
}

func linkGoogleAccount(cmd *cobra.Command, svc auth.Service) error {
	ctx := cmd.Context()
	state, verifier, challenge, err := auth.NewOAuthState()
	if err != nil {
		return err
	}
	url, err := svc.GoogleAuthURL(ctx, state, challenge)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Open this URL and authorize access:\n\n%s\n\nPaste the authorization code: ", url)

	code, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && strings.TrimSpace(code) == "" {
		return fmt.Errorf("read authorization code: %w", err)
	}
	account, err := svc.GoogleCallback(ctx, strings.TrimSpace(code), verifier)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Linked %s\n", account.Email)
	return nil
}

func withApp(ctx context.Context, fn func(app *bootstrap.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app, cleanup, err := initializeApp(cfg)
	if err != nil {
		return fmt.Errorf("wire application: %w", err)
	}
	defer cleanup()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(app)
}

