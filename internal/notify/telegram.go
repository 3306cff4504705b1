package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// TelegramSender posts status records to a Telegram chat via the Bot
// API. Configured entirely from TELEGRAM_STATUS_BOT_TOKEN and
// TELEGRAM_STATUS_CHAT_ID; absent credentials disable it.
type TelegramSender struct {
	client *resty.Client
	token  string
	chatID string
}

// TelegramFromEnv builds a sender from the environment, or nil when the
// credentials are not set.
func TelegramFromEnv() *TelegramSender {
	token := os.Getenv("TELEGRAM_STATUS_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_STATUS_CHAT_ID")
	if token == "" || chatID == "" {
		return nil
	}
	return &TelegramSender{
		client: resty.New().SetTimeout(10 * time.Second),
		token:  token,
		chatID: chatID,
	}
}

// Send posts one record.
func (t *TelegramSender) Send(ctx context.Context, rec Record) error {
	text := fmt.Sprintf("[%s] %s\n%s UTC", rec.Hostname, rec.Message,
		rec.Timestamp.Format("2006-01-02 15:04:05"))

	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chat_id": t.chatID,
			"text":    text,
		}).
		Get(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram send: status %d", resp.StatusCode())
	}
	return nil
}
