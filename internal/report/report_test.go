package report

import (
	"context"
	"errors"
	"testing"

	"github.com/nivashs/reddit-memes-api/internal/models"
)

type fakeFetcher struct {
	memes     []models.Meme
	err       error
	lastLimit int
}

func (f *fakeFetcher) FetchTop(ctx context.Context, limit int, after string) ([]models.Meme, string, error) {
	f.lastLimit = limit
	return f.memes, "", f.err
}

type fakeSender struct {
	sent []models.Meme
	err  error
}

func (f *fakeSender) SendMemeReport(ctx context.Context, memes []models.Meme) error {
	f.sent = memes
	return f.err
}

func newTestReporter(fetcher Fetcher, sender Sender, senderErr error) *Reporter {
	return &Reporter{
		fetcher: fetcher,
		newSender: func(creds Credentials) (Sender, error) {
			if senderErr != nil {
				return nil, senderErr
			}
			return sender, nil
		},
	}
}

func TestSend_FetchesAndSends(t *testing.T) {
	fetcher := &fakeFetcher{memes: []models.Meme{{ID: "a"}, {ID: "b"}}}
	sender := &fakeSender{}
	r := newTestReporter(fetcher, sender, nil)

	err := r.Send(context.Background(), Credentials{BotToken: "t", ChatID: "c"}, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.lastLimit != 20 {
		t.Errorf("limit = %d, want 20", fetcher.lastLimit)
	}
	if len(sender.sent) != 2 {
		t.Errorf("sent %d memes, want 2", len(sender.sent))
	}
}

func TestSend_BadCredentials(t *testing.T) {
	wantErr := errors.New("telegram: bot token is required")
	r := newTestReporter(&fakeFetcher{}, nil, wantErr)

	if err := r.Send(context.Background(), Credentials{}, 20); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestSend_FetchFailureSendsNothing(t *testing.T) {
	wantErr := errors.New("upstream down")
	sender := &fakeSender{}
	r := newTestReporter(&fakeFetcher{err: wantErr}, sender, nil)

	err := r.Send(context.Background(), Credentials{BotToken: "t", ChatID: "c"}, 20)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if sender.sent != nil {
		t.Error("nothing should be sent when the fetch fails")
	}
}

func TestCredentials_Complete(t *testing.T) {
	if (Credentials{BotToken: "t"}).Complete() {
		t.Error("missing chat id should not be complete")
	}
	if (Credentials{ChatID: "c"}).Complete() {
		t.Error("missing token should not be complete")
	}
	if !(Credentials{BotToken: "t", ChatID: "c"}).Complete() {
		t.Error("full credentials should be complete")
	}
}
