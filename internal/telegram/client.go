// Package telegram provides a client for sending alert notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/tokenpulse/internal/format"
	"github.com/rewired-gh/tokenpulse/internal/models"
)

// AlertLister backs the /alerts command.
type AlertLister interface {
	List() []models.PriceAlert
}

// sender is the subset of the bot API used for outgoing messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	out            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	alerts         AlertLister
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c := newClient(bot, chatIDInt, maxRetries, retryDelayBase)
	c.bot = bot
	return c, nil
}

func newClient(out sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		out:            out,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// SetAlertLister enables the /alerts command.
func (c *Client) SetAlertLister(l AlertLister) {
	c.alerts = l
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message.Chat.ID, update.Message.Command())
				}
			}
		}
	}()
}

func (c *Client) handleCommand(chatID int64, command string) {
	switch command {
	case "ping":
		c.out.Send(tgbotapi.NewMessage(chatID, "Pong")) //nolint:errcheck
	case "alerts":
		if c.alerts == nil {
			return
		}
		reply := tgbotapi.NewMessage(chatID, formatAlertList(c.alerts.List()))
		reply.ParseMode = "MarkdownV2"
		c.out.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.out.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// Notify sends one alert trigger.
func (c *Client) Notify(ctx context.Context, t models.Trigger) error {
	return c.sendMarkdownV2(ctx, formatTrigger(t))
}

// SendError sends a refresh error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, refreshErr error) error {
	text := fmt.Sprintf("⚠️ *Token refresh failed*\n`%s`", escapeMarkdownV2(refreshErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Token refresh recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

func formatTrigger(t models.Trigger) string {
	emoji := "📈"
	if t.Condition == models.ConditionBelow {
		emoji = "📉"
	}
	return fmt.Sprintf("🚨 *Price Alert*\n\n%s %s\nTarget: %s\nPrice: %s\n📅 %s",
		emoji,
		escapeMarkdownV2(t.Message()),
		escapeMarkdownV2(format.Price(t.TargetPrice)),
		escapeMarkdownV2(format.Price(t.Price)),
		escapeMarkdownV2(t.TriggeredAt.Format("2006-01-02 15:04:05")),
	)
}

func formatAlertList(alerts []models.PriceAlert) string {
	if len(alerts) == 0 {
		return "No alerts configured"
	}
	var b strings.Builder
	b.WriteString("🔔 *Alerts*\n\n")
	for i, a := range alerts {
		state := "armed"
		switch {
		case !a.Enabled:
			state = "disabled"
		case a.Triggered:
			state = "triggered"
		}
		symbol := a.TokenSymbol
		if symbol == "" {
			symbol = a.TokenID
		}
		line := fmt.Sprintf("%d. %s %s %s [%s]", i+1, symbol, a.Condition, format.Price(a.TargetPrice), state)
		b.WriteString(escapeMarkdownV2(line))
		b.WriteByte('\n')
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
