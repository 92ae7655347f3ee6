package telegram_bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akash-mondal/feed-alpha/internal/config"
	"github.com/akash-mondal/feed-alpha/internal/models"
	"github.com/akash-mondal/feed-alpha/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

// Profiles is implemented by *service.ProfileService.
type Profiles interface {
	List(ctx context.Context, userID int64) ([]*models.Profile, error)
	Summary(ctx context.Context, userID int64, id string) (models.ProfileSummary, error)
	SummaryByName(ctx context.Context, userID int64, name string) (models.ProfileSummary, error)
}

// Bot answers profile brief requests in private chats.
type Bot struct {
	api      *tgbotapi.BotAPI
	profiles Profiles
	logger   *zap.Logger
}

// NewBot creates a new Telegram bot instance. It returns nil, nil when the
// bot is disabled.
func NewBot(cfg *config.Config, profiles Profiles, logger *zap.Logger) (*Bot, error) {
	if !cfg.Bot.Enabled || cfg.Bot.Token == "" {
		logger.Info("Telegram bot is disabled (bot.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:      botAPI,
		profiles: profiles,
		logger:   logger,
	}, nil
}

// Start begins listening for updates from Telegram
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallbackQuery(ctx, update.CallbackQuery)
			} else if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

// handleCallbackQuery serves the inline buttons sent by /profiles.
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	id, ok := strings.CutPrefix(query.Data, "brief:")
	if !ok || id == "" {
		b.logger.Warn("Unknown callback data", zap.String("data", query.Data))
		return
	}

	summary, err := b.profiles.Summary(ctx, query.From.ID, id)
	b.sendMessage(query.From.ID, briefText(summary, err))
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() || message.From == nil {
		return
	}

	if message.Command() == "profiles" {
		b.sendProfiles(ctx, message)
		return
	}
	for _, part := range splitMessage(b.reply(ctx, message.From.ID, message.From.FirstName, message.Command(), message.CommandArguments())) {
		b.sendMessage(message.Chat.ID, part)
	}
}

// reply produces the text answer for a command.
func (b *Bot) reply(ctx context.Context, userID int64, firstName, command, args string) string {
	switch command {
	case "start":
		return fmt.Sprintf("Hi %s!\n\n"+
			"Open the app to follow X accounts and Telegram channels and group them into signal profiles.\n\n"+
			"Then ask me for a brief any time with /brief <profile name>.", firstName)
	case "help":
		return helpText
	case "brief":
		name := strings.TrimSpace(args)
		if name == "" {
			return "Usage: /brief <profile name>"
		}
		summary, err := b.profiles.SummaryByName(ctx, userID, name)
		if errors.Is(err, service.ErrNotFound) {
			return fmt.Sprintf("No profile named %q. Use /profiles to see yours.", name)
		}
		return briefText(summary, err)
	}
	return "Unknown command. Use /help for help."
}

const helpText = "/profiles - list your signal profiles\n" +
	"/brief <name> - summarize a profile's sources right now\n" +
	"/help - this message"

func (b *Bot) sendProfiles(ctx context.Context, message *tgbotapi.Message) {
	profiles, err := b.profiles.List(ctx, message.From.ID)
	if err != nil {
		b.logger.Error("Failed to list profiles", zap.Int64("user_id", message.From.ID), zap.Error(err))
		b.sendMessage(message.Chat.ID, "Could not load your profiles. Try again later.")
		return
	}
	if len(profiles) == 0 {
		b.sendMessage(message.Chat.ID, "You have no signal profiles yet. Create one in the app.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, "Pick a profile for a brief:")
	msg.ReplyMarkup = profileKeyboard(profiles)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send profile list", zap.Error(err))
	}
}

func profileKeyboard(profiles []*models.Profile) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p.Name, "brief:"+p.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// briefText renders a summary with its triggered findings under it.
func briefText(summary models.ProfileSummary, err error) string {
	if err != nil {
		return "Could not build the brief right now. Try again later."
	}
	var sb strings.Builder
	sb.WriteString(summary.Narrative)
	var triggered []models.Finding
	for _, f := range summary.Findings {
		if !f.Advisory {
			triggered = append(triggered, f)
		}
	}
	if len(triggered) > 0 {
		sb.WriteString("\n\nSignals:")
		for _, f := range triggered {
			sb.WriteString("\n• ")
			sb.WriteString(f.Text)
		}
	}
	return sb.String()
}

// splitMessage cuts text into chunks Telegram accepts, preferring line breaks.
func splitMessage(text string) []string {
	var parts []string
	for len(text) > maxMessageLength {
		cut := strings.LastIndex(text[:maxMessageLength], "\n")
		if cut <= 0 {
			cut = maxMessageLength
			for cut > 0 && !isRuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	return append(parts, text)
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// sendMessage is a helper to send a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
