// Package notify pushes newly stored hotspots to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hotspot/internal/model"
)

type TelegramConfig struct {
	Token  string
	ChatID int64
	// Endpoint overrides tgbotapi.APIEndpoint; it must contain two %s verbs.
	Endpoint string
	Timeout  time.Duration
}

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram verifies the token with getMe before returning.
func NewTelegram(cfg TelegramConfig, log *slog.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	log.Info("[Telegram] bot connected", slog.String("username", bot.Self.UserName))
	return &Telegram{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (t *Telegram) HotspotCreated(_ context.Context, h model.Hotspot) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatHotspot(h))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// FormatHotspot renders h as a Telegram HTML message.
func FormatHotspot(h model.Hotspot) string {
	esc := func(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeHTML, s) }
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", esc(h.Title))
	fmt.Fprintf(&b, "%s · score %.2f · %d likes", esc(h.Source), h.RelevanceScore, h.Likes)
	if len(h.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "\nkeywords: %s", esc(strings.Join(h.MatchedKeywords, ", ")))
	}
	if h.SourceURL != nil {
		fmt.Fprintf(&b, "\n%s", esc(*h.SourceURL))
	}
	return b.String()
}
