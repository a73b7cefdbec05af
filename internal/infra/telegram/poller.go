package telegram

import (
	"context"
	"log/slog"
	"time"
)

const errorBackoff = 5 * time.Second

// UpdateSource is the long-poll capability of Client.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Handler processes one text message. Handlers run sequentially in update
// order.
type Handler func(ctx context.Context, msg Message)

// PollerConfig controls the polling loop.
type PollerConfig struct {
	Timeout time.Duration
	// AllowedChatID restricts dispatch to one chat when set.
	AllowedChatID string
}

// Poller drives getUpdates until its context ends.
type Poller struct {
	source UpdateSource
	cfg    PollerConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	offset int64
}

// NewPoller constructs a poller over source.
func NewPoller(source UpdateSource, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Poller{
		source: source,
		cfg:    cfg,
		logger: logger.With("component", "telegram.poller"),
		sleep:  sleepContext,
	}
}

// Run polls until ctx is cancelled, which is the only way it returns. Each
// update is acknowledged by advancing the offset past it before the next poll.
func (p *Poller) Run(ctx context.Context, handle Handler) error {
	p.logger.Info("telegram polling started", "timeout", p.cfg.Timeout)
	defer p.logger.Info("telegram polling stopped")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		updates, err := p.source.GetUpdates(ctx, p.offset, p.cfg.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("telegram getUpdates failed", "error", err, "retry_in", errorBackoff)
			if err := p.sleep(ctx, errorBackoff); err != nil {
				return nil
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= p.offset {
				p.offset = update.UpdateID + 1
			}
			p.dispatch(ctx, update, handle)
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update Update, handle Handler) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ChatID()
	if p.cfg.AllowedChatID != "" && chatID != p.cfg.AllowedChatID {
		p.logger.Warn("ignoring message from unauthorized chat", "chat_id", chatID)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("telegram handler panicked", "chat_id", chatID, "panic", r)
		}
	}()
	handle(ctx, *msg)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
