package notify

import (
	"context"
	"net/http"
	"time"
)

// TelegramSender pushes alerts into one chat through the Bot API.
type TelegramSender struct {
	token  string
	chatID string
	client *http.Client
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSender) Send(ctx context.Context, text string) error {
	url := "https://api.telegram.org/bot" + t.token + "/sendMessage"
	return postJSON(ctx, t.client, t.Name(), url, map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
}

func (t *TelegramSender) Name() string { return "telegram" }
