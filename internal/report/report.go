package report

import (
	"context"

	"github.com/nivashs/reddit-memes-api/internal/models"
	"github.com/nivashs/reddit-memes-api/internal/telegram"
)

// Fetcher matches the reddit client's listing method.
type Fetcher interface {
	FetchTop(ctx context.Context, limit int, after string) ([]models.Meme, string, error)
}

// Sender dispatches a finished report. Satisfied by *telegram.Client.
type Sender interface {
	SendMemeReport(ctx context.Context, memes []models.Meme) error
}

type Credentials struct {
	BotToken string
	ChatID   string
}

func (c Credentials) Complete() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Reporter fetches the current top memes and posts them to Telegram. The
// fetch deliberately skips persistence: a report reflects upstream, not the
// database.
type Reporter struct {
	fetcher   Fetcher
	newSender func(creds Credentials) (Sender, error)
}

func New(fetcher Fetcher, telegramAPIURL string) *Reporter {
	return &Reporter{
		fetcher: fetcher,
		newSender: func(creds Credentials) (Sender, error) {
			return telegram.NewClient(creds.BotToken, creds.ChatID, telegramAPIURL)
		},
	}
}

func (r *Reporter) Send(ctx context.Context, creds Credentials, limit int) error {
	sender, err := r.newSender(creds)
	if err != nil {
		return err
	}
	memes, _, err := r.fetcher.FetchTop(ctx, limit, "")
	if err != nil {
		return err
	}
	return sender.SendMemeReport(ctx, memes)
}
