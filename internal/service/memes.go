package service

import (
	"context"
	"log/slog"

	"github.com/nivashs/reddit-memes-api/internal/models"
	"github.com/nivashs/reddit-memes-api/internal/store"
)

// Fetcher is the upstream listing port, satisfied by *reddit.Client.
type Fetcher interface {
	FetchTop(ctx context.Context, limit int, after string) ([]models.Meme, string, error)
}

// Storer is the persistence port, satisfied by *store.MemeStore.
type Storer interface {
	SaveAll(ctx context.Context, memes []models.Meme) (int, error)
	History(ctx context.Context, q store.HistoryQuery) (store.HistoryPage, error)
}

type MemeService struct {
	fetcher Fetcher
	store   Storer
	log     *slog.Logger
}

func New(fetcher Fetcher, store Storer, log *slog.Logger) *MemeService {
	if log == nil {
		log = slog.Default()
	}
	return &MemeService{fetcher: fetcher, store: store, log: log}
}

// GetTop fetches the current top memes, persists them, and returns the
// fetched list. The caller always sees live upstream data; a persistence
// failure is logged, not surfaced.
func (s *MemeService) GetTop(ctx context.Context, limit int) ([]models.Meme, error) {
	memes, _, err := s.fetcher.FetchTop(ctx, limit, "")
	if err != nil {
		return nil, err
	}
	s.persist(ctx, memes)
	return memes, nil
}

// GetPaginated is GetTop with cursor forwarding: after continues a previous
// listing, and the returned page carries the cursor for the next one.
func (s *MemeService) GetPaginated(ctx context.Context, limit int, after string) (models.Page, error) {
	memes, next, err := s.fetcher.FetchTop(ctx, limit, after)
	if err != nil {
		return models.Page{}, err
	}
	s.persist(ctx, memes)

	page := models.Page{Items: memes}
	if next != "" {
		page.NextCursor = &next
	}
	return page, nil
}

// History reads previously stored memes; nothing is fetched upstream.
func (s *MemeService) History(ctx context.Context, q store.HistoryQuery) (store.HistoryPage, error) {
	return s.store.History(ctx, q)
}

func (s *MemeService) persist(ctx context.Context, memes []models.Meme) {
	if len(memes) == 0 {
		return
	}
	saved, err := s.store.SaveAll(ctx, memes)
	if err != nil {
		s.log.Error("[service]: persist memes", "saved", saved, "total", len(memes), "error", err)
		return
	}
	s.log.Debug("[service]: persisted memes", "count", saved)
}
