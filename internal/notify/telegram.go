// Package notify delivers operator notifications and commands over Telegram.
package notify

import (
	"context"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"jongga-bot/internal/logger"
)

// Controller is the engine surface the command listener drives.
type Controller interface {
	Status() string
	PauseEntries()
	ResumeEntries()
	LiquidateAll(ctx context.Context)
	Report(ctx context.Context) (string, error)
}

// Telegram sends messages to one configured chat and answers commands from
// it. Other chats are ignored.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// FromEnv builds a Telegram notifier from TELEGRAM_BOT_TOKEN and
// TELEGRAM_CHAT_ID. Returns (nil, nil) when the token is unset so callers can
// fall back to a no-op.
func FromEnv() (*Telegram, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, nil
	}
	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify sends text to the configured chat. Best effort.
func (t *Telegram) Notify(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		logger.Warn(ctx, "Telegram send failed", "error", err.Error())
	}
}

// Run long-polls for commands until ctx is cancelled. Recognized commands:
// /status, /stop, /start, /sell, /report.
func (t *Telegram) Run(ctx context.Context, ctl Controller) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	logger.Info(ctx, "Telegram command listener started", "chat_id", t.chatID)

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != t.chatID {
				logger.Warn(ctx, "Command from unknown chat ignored", "chat_id", update.Message.Chat.ID)
				continue
			}
			t.handle(ctx, ctl, update.Message.Command())
		}
	}
}

func (t *Telegram) handle(ctx context.Context, ctl Controller, cmd string) {
	logger.Info(ctx, "Telegram command received", "command", cmd)
	switch cmd {
	case "status":
		t.Notify(ctx, ctl.Status())
	case "stop":
		ctl.PauseEntries()
		t.Notify(ctx, "⏸ New entries paused. Exits keep running. /start to resume.")
	case "start":
		ctl.ResumeEntries()
		t.Notify(ctx, "▶️ New entries resumed.")
	case "sell":
		t.Notify(ctx, "🧹 Liquidating all tracked positions...")
		ctl.LiquidateAll(ctx)
	case "report":
		report, err := ctl.Report(ctx)
		if err != nil {
			t.Notify(ctx, "⚠️ Report failed: "+err.Error())
			return
		}
		if report == "" {
			t.Notify(ctx, "No trades recorded today.")
			return
		}
		t.Notify(ctx, report)
	default:
		t.Notify(ctx, "Unknown command. Available: /status /stop /start /sell /report")
	}
}

// Nop discards every notification; used when Telegram is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}
