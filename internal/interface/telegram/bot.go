package telegram

import (
	"context"
	"log/slog"
	"time"

	"github.com/yanqian/ai-assistant/internal/domain/assistant"
	tg "github.com/yanqian/ai-assistant/internal/infra/telegram"
)

const fallbackReply = "Sorry, something went wrong while handling your message. Please try again."

// Sender is the outgoing half of the Telegram client.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) error
	SendTyping(ctx context.Context, chatID string) error
}

// Bot connects chat messages to the assistant and delivers its replies.
type Bot struct {
	assistant    assistant.Service
	sender       Sender
	maxLen       int
	replyTimeout time.Duration
	logger       *slog.Logger
}

// BotConfig tunes reply delivery.
type BotConfig struct {
	MaxMessageLength int
	// ReplyTimeout bounds the handling of one message.
	ReplyTimeout time.Duration
}

// NewBot constructs a Bot.
func NewBot(cfg BotConfig, svc assistant.Service, sender Sender, logger *slog.Logger) *Bot {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 2 * time.Minute
	}
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = tg.DefaultMaxMessageLength
	}
	return &Bot{
		assistant:    svc,
		sender:       sender,
		maxLen:       cfg.MaxMessageLength,
		replyTimeout: cfg.ReplyTimeout,
		logger:       logger.With("component", "telegram.bot"),
	}
}

// HandleMessage is a tg.Handler.
func (b *Bot) HandleMessage(ctx context.Context, msg tg.Message) {
	chatID := msg.Chat.ChatID()
	ctx, cancel := context.WithTimeout(ctx, b.replyTimeout)
	defer cancel()

	if err := b.sender.SendTyping(ctx, chatID); err != nil {
		b.logger.Debug("send typing failed", "chat_id", chatID, "error", err)
	}

	started := time.Now()
	reply, err := b.assistant.HandleMessage(ctx, assistant.Message{ChatID: chatID, Text: msg.Text})
	if err != nil {
		b.logger.Error("assistant failed", "chat_id", chatID, "error", err)
		reply = assistant.Reply{Text: fallbackReply}
	}
	b.logger.Info("message handled",
		"chat_id", chatID,
		"route", reply.Route,
		"degraded", reply.Degraded,
		"duration", time.Since(started),
	)

	if err := b.send(ctx, chatID, reply.Text); err != nil {
		b.logger.Error("send reply failed", "chat_id", chatID, "error", err)
	}
}

// Notify implements assistant.Notifier.
func (b *Bot) Notify(ctx context.Context, chatID, text string) error {
	return b.send(ctx, chatID, text)
}

func (b *Bot) send(ctx context.Context, chatID, text string) error {
	if text == "" {
		return nil
	}
	return b.sender.SendMessage(ctx, chatID, tg.FormatHTML(text, b.maxLen))
}
