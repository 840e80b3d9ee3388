package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/nivashs/reddit-memes-api/internal/models"
)

var (
	// ErrUnavailable covers connection and query failures against Postgres.
	ErrUnavailable = errors.New("store: storage unavailable")

	// ErrBadCursor means the pagination cursor could not be decoded or does
	// not match the requested sort field.
	ErrBadCursor = errors.New("store: invalid cursor")

	// ErrBadSort means sort_by or order is outside the allowed set.
	ErrBadSort = errors.New("store: invalid sort parameter")
)

type MemeStore struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *MemeStore {
	return &MemeStore{db: db}
}

const upsertMeme = `
INSERT INTO memes (
    id, title, image_url, score, upvote_ratio, author, num_comments,
    permalink, thumbnail, is_video, created_at, fetched_at
) VALUES (
    :id, :title, :image_url, :score, :upvote_ratio, :author, :num_comments,
    :permalink, :thumbnail, :is_video, :created_at, :fetched_at
)
ON CONFLICT (id) DO UPDATE SET
    title = EXCLUDED.title,
    image_url = EXCLUDED.image_url,
    score = EXCLUDED.score,
    upvote_ratio = EXCLUDED.upvote_ratio,
    author = EXCLUDED.author,
    num_comments = EXCLUDED.num_comments,
    permalink = EXCLUDED.permalink,
    thumbnail = EXCLUDED.thumbnail,
    is_video = EXCLUDED.is_video,
    fetched_at = EXCLUDED.fetched_at`

// SaveAll upserts each meme by id. A failing row does not abort the rest;
// the count of written rows is returned together with the collected errors,
// so partial success is visible to the caller.
func (s *MemeStore) SaveAll(ctx context.Context, memes []models.Meme) (int, error) {
	var saved int
	var errs []error
	for _, m := range memes {
		if _, err := s.db.NamedExecContext(ctx, upsertMeme, m); err != nil {
			errs = append(errs, fmt.Errorf("upsert %s: %v", m.ID, err))
			continue
		}
		saved++
	}
	if len(errs) > 0 {
		return saved, fmt.Errorf("%w: %d of %d rows failed: %w", ErrUnavailable, len(errs), len(memes), errors.Join(errs...))
	}
	return saved, nil
}

// ListTop reads the highest-score rows from storage, a cached view of what
// upstream returned on earlier fetches.
func (s *MemeStore) ListTop(ctx context.Context, limit int) ([]models.Meme, error) {
	memes := []models.Meme{}
	err := s.db.SelectContext(ctx, &memes,
		`SELECT * FROM memes ORDER BY score DESC, fetched_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list top: %v", ErrUnavailable, err)
	}
	return memes, nil
}

// HistoryQuery selects a page of stored memes. Zero values mean defaults:
// sort by fetched_at, descending, DefaultHistoryLimit rows.
type HistoryQuery struct {
	Cursor string
	Limit  int
	SortBy string
	Order  string
}

type HistoryPage struct {
	Items      []models.Meme `json:"items"`
	NextCursor *string       `json:"next_cursor"`
	HasNext    bool          `json:"has_next"`
}

const DefaultHistoryLimit = 20

// History pages through stored memes with a keyset cursor: the cursor holds
// the sort-field value of the last row of the previous page, and the query
// resumes strictly past it. One extra row is fetched to detect a next page.
func (s *MemeStore) History(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	sortBy, dir, op, err := normalizeSort(q.SortBy, q.Order)
	if err != nil {
		return HistoryPage{}, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	// sortBy is whitelisted above, safe to interpolate.
	query := "SELECT * FROM memes"
	args := []any{}
	if q.Cursor != "" {
		val, err := cursorValue(sortBy, q.Cursor)
		if err != nil {
			return HistoryPage{}, err
		}
		query += fmt.Sprintf(" WHERE %s %s $1", sortBy, op)
		args = append(args, val)
	}
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT $%d", sortBy, dir, len(args)+1)
	args = append(args, limit+1)

	memes := []models.Meme{}
	if err := s.db.SelectContext(ctx, &memes, query, args...); err != nil {
		return HistoryPage{}, fmt.Errorf("%w: history: %v", ErrUnavailable, err)
	}

	page := HistoryPage{HasNext: len(memes) > limit}
	if page.HasNext {
		memes = memes[:limit]
	}
	page.Items = memes
	if page.HasNext && len(memes) > 0 {
		cursor := encodeCursor(sortBy, memeField(memes[len(memes)-1], sortBy))
		page.NextCursor = &cursor
	}
	return page, nil
}

var sortFields = map[string]bool{
	"fetched_at":   true,
	"score":        true,
	"created_at":   true,
	"num_comments": true,
}

// normalizeSort validates sort_by and order, returning the column, the SQL
// direction, and the comparison operator the cursor predicate should use.
func normalizeSort(sortBy, order string) (field, dir, op string, err error) {
	field = sortBy
	if field == "" {
		field = "fetched_at"
	}
	if !sortFields[field] {
		return "", "", "", fmt.Errorf("%w: sort_by %q", ErrBadSort, sortBy)
	}

	switch strings.ToLower(order) {
	case "", "desc":
		return field, "DESC", "<", nil
	case "asc":
		return field, "ASC", ">", nil
	default:
		return "", "", "", fmt.Errorf("%w: order %q", ErrBadSort, order)
	}
}
