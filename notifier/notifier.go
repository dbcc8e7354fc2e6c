package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Message is a run summary delivered to the configured sink.
type Message struct {
	Title string
	Text  string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Kinds accepted by New.
const (
	KindNone    = "none"
	KindLog     = "log"
	KindDiscord = "discord"
)

// New builds the notifier selected by kind.
func New(kind, webhookURL string, logger zerolog.Logger) (Notifier, error) {
	switch kind {
	case "", KindNone:
		return Nop{}, nil
	case KindLog:
		return &LogNotifier{Logger: logger}, nil
	case KindDiscord:
		if webhookURL == "" {
			return nil, fmt.Errorf("webhook URL is not set")
		}
		return &DiscordNotifier{WebhookURL: webhookURL, Client: &http.Client{Timeout: 15 * time.Second}}, nil
	}
	return nil, fmt.Errorf("unknown notifier type: %s", kind)
}

type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func (d *DiscordNotifier) Notify(ctx context.Context, msg Message) error {
	if d.WebhookURL == "" {
		return fmt.Errorf("webhook URL is not set")
	}

	content := msg.Text
	if msg.Title != "" {
		content = "**" + msg.Title + "**\n" + msg.Text
	}
	// Discord rejects messages longer than 2000 characters.
	if r := []rune(content); len(r) > 2000 {
		content = string(r[:1997]) + "..."
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook failed with status %d", resp.StatusCode)
	}

	return nil
}

// LogNotifier writes the message to the application log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l *LogNotifier) Notify(ctx context.Context, msg Message) error {
	l.Logger.Info().Str("title", msg.Title).Msg(msg.Text)
	return nil
}

// Nop discards messages.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }
