package telegram

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxRetries = 3

type Client struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewClient(token string, logger *zap.Logger) (*Client, error) {
	// Create a custom HTTP client with proper timeout settings
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			MaxIdleConns:          100,
		},
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Client{
		bot:    bot,
		logger: logger,
	}, nil
}

// SendMessage sends plain text to chatID, retrying transient failures with
// exponential backoff.
func (c *Client) SendMessage(ctx context.Context, chatID string, message string) error {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	msg := tgbotapi.NewMessage(chatIDInt, message)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err = c.bot.Send(msg)
		if err == nil {
			c.logger.Info("Telegram message sent successfully",
				zap.String("chatID", chatID),
				zap.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		c.logger.Warn("Failed to send Telegram message",
			zap.String("chatID", chatID),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries))

		// Don't retry on last attempt
		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	c.logger.Error("Failed to send Telegram message after retries",
		zap.String("chatID", chatID),
		zap.Error(lastErr),
		zap.Int("attempts", maxRetries))
	return fmt.Errorf("failed to send message after %d attempts: %w", maxRetries, lastErr)
}
