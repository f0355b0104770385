// Package notify implements notification collaborators for viral alerts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamesweston/viral-monitor/internal/monitor"
)

// Telegram delivers viral alerts through the Telegram Bot API.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token, chatID string) *Telegram {
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send posts one alert message for the event. The orchestrator treats a
// failure here as log-and-continue; it must never re-enter the scrape
// retry loop.
func (t *Telegram) Send(ctx context.Context, event monitor.ViralEvent) error {
	return t.sendText(ctx, formatAlert(event))
}

// SendText posts a plain status message, used for the startup notice.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	return t.sendText(ctx, text)
}

func (t *Telegram) sendText(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram responded %d: %s", resp.StatusCode, payload)
	}
	return nil
}

func formatAlert(event monitor.ViralEvent) string {
	desc := event.Description
	if runes := []rune(desc); len(runes) > 100 {
		desc = string(runes[:100]) + "..."
	}
	return fmt.Sprintf(`🚨 *VIRAL ALERT!* 🚨

👤 *Account*: @%s
📹 *Video*: %s

📊 *Performance*:
• Views: %d (+%d)
• Likes: %d
• Comments: %d
• Shares: %d

🔗 *Link*: %s

⏰ *Detected*: %s`,
		event.Username,
		desc,
		event.CurrentViews,
		event.Delta,
		event.Likes,
		event.Comments,
		event.Shares,
		event.VideoURL(),
		event.DetectedAt.Format("2006-01-02 15:04:05"),
	)
}
