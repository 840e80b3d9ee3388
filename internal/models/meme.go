package models

import "time"

// Meme is one Reddit post as stored in the memes table. ID is the upstream's
// stable post identifier, so re-fetching a post updates its row in place.
type Meme struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Score       int       `db:"score" json:"score"`
	UpvoteRatio float64   `db:"upvote_ratio" json:"upvote_ratio"`
	Author      string    `db:"author" json:"author"`
	NumComments int       `db:"num_comments" json:"num_comments"`
	Permalink   string    `db:"permalink" json:"permalink"`
	Thumbnail   *string   `db:"thumbnail" json:"thumbnail"`
	IsVideo     bool      `db:"is_video" json:"is_video"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	FetchedAt   time.Time `db:"fetched_at" json:"fetched_at"`
}

// Page is one upstream page of memes. NextCursor carries the opaque token to
// continue listing and is nil when upstream reports no further page.
type Page struct {
	Items      []Meme  `json:"items"`
	NextCursor *string `json:"next_cursor"`
}
