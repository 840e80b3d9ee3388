package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nivashs/reddit-memes-api/internal/models"
)

const (
	defaultAPIURL = "https://api.telegram.org"

	// Telegram caps messages at 4096 characters; truncate at 4000 to leave
	// room for the truncation marker.
	maxMessageLen = 4000

	sendTimeout = 10 * time.Second
)

// Client posts messages to one chat through the Telegram Bot API.
type Client struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	now      func() time.Time
}

func NewClient(botToken, chatID, baseURL string) (*Client, error) {
	if botToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if chatID == "" {
		return nil, errors.New("telegram: chat id is required")
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: sendTimeout},
		now:      time.Now,
	}, nil
}

// SendMemeReport formats the memes as a numbered report and sends it as one
// message.
func (c *Client) SendMemeReport(ctx context.Context, memes []models.Meme) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    c.chatID,
		"text":       buildReport(memes, c.now()),
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: send report: status %d", resp.StatusCode)
	}
	return nil
}

func buildReport(memes []models.Meme, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Top %d Memes Report - %s\n\n", len(memes), now.Format("2006-01-02 15:04:05"))
	for i, m := range memes {
		fmt.Fprintf(&b, "%d. %s\n👍 Score: %d | 💬 Comments: %d\n🔗 %s\n\n",
			i+1, m.Title, m.Score, m.NumComments, m.Permalink)
	}
	return truncate(b.String(), maxMessageLen)
}

// truncate cuts msg at limit bytes without splitting a rune.
func truncate(msg string, limit int) string {
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "\n\n... (message truncated)"
}
