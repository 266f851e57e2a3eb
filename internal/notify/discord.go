package notify

import (
	"context"
	"net/http"
	"time"
)

// DiscordSender pushes alerts through a channel webhook. Discord answers 204
// on success.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordSender) Send(ctx context.Context, text string) error {
	return postJSON(ctx, d.client, d.Name(), d.webhookURL, map[string]string{
		"content": text,
	})
}

func (d *DiscordSender) Name() string { return "discord" }
