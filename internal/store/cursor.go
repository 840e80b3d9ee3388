package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nivashs/reddit-memes-api/internal/models"
)

// Cursors are base64-encoded JSON objects of the form {"<sort field>": "<value>"},
// mirroring what the API handed out on the previous page. They are opaque to
// clients; only this package reads them.

func encodeCursor(field, value string) string {
	raw, _ := json.Marshal(map[string]string{field: value})
	return base64.StdEncoding.EncodeToString(raw)
}

func decodeCursor(cursor, field string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	v, ok := data[field]
	if !ok || v == "" {
		return "", fmt.Errorf("%w: cursor does not match sort field %q", ErrBadCursor, field)
	}
	return v, nil
}

// cursorValue decodes the cursor and parses its value into the Go type the
// sort column compares against, so a garbage cursor fails here with
// ErrBadCursor instead of inside Postgres.
func cursorValue(field, cursor string) (any, error) {
	raw, err := decodeCursor(cursor, field)
	if err != nil {
		return nil, err
	}
	switch field {
	case "score", "num_comments":
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrBadCursor, raw)
		}
		return n, nil
	case "fetched_at", "created_at":
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a timestamp", ErrBadCursor, raw)
		}
		return ts, nil
	default:
		return nil, fmt.Errorf("%w: sort_by %q", ErrBadSort, field)
	}
}

// memeField renders the sort-column value of a row the way cursorValue will
// parse it back.
func memeField(m models.Meme, field string) string {
	switch field {
	case "score":
		return strconv.Itoa(m.Score)
	case "num_comments":
		return strconv.Itoa(m.NumComments)
	case "created_at":
		return m.CreatedAt.UTC().Format(time.RFC3339Nano)
	default: // fetched_at
		return m.FetchedAt.UTC().Format(time.RFC3339Nano)
	}
}
