package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nivashs/reddit-memes-api/internal/models"
)

const (
	// permalinkBase is prepended to the relative permalink Reddit returns.
	permalinkBase = "https://reddit.com"

	// tokenSkew is subtracted from the token lifetime so the client refreshes
	// before Reddit actually rejects the token.
	tokenSkew = 300 * time.Second

	defaultTimeout = 10 * time.Second
)

var (
	// ErrUnavailable covers transport failures, timeouts and non-2xx
	// responses from Reddit, including the token endpoint.
	ErrUnavailable = errors.New("reddit: upstream unavailable")

	// ErrMalformed covers responses that cannot be decoded into the expected
	// listing shape.
	ErrMalformed = errors.New("reddit: malformed upstream response")
)

type Config struct {
	ClientID     string
	ClientSecret string
	Subreddit    string
	APIURL       string // e.g. https://oauth.reddit.com
	AuthURL      string // e.g. https://www.reddit.com/api/v1/access_token
	UserAgent    string
	Timeout      time.Duration
}

// Client talks to Reddit's OAuth API for a single subreddit. It is safe for
// concurrent use; the cached access token is guarded by a mutex.
type Client struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("reddit: client credentials are required")
	}
	if cfg.Subreddit == "" {
		return nil, errors.New("reddit: subreddit is required")
	}
	if cfg.APIURL == "" || cfg.AuthURL == "" {
		return nil, errors.New("reddit: api and auth urls are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}, nil
}

// FetchTop retrieves one page of the subreddit's daily top listing. after is
// an opaque cursor from a previous page and may be empty. The returned cursor
// is empty when upstream reports no further page. Items keep upstream order.
func (c *Client) FetchTop(ctx context.Context, limit int, after string) ([]models.Meme, string, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, "", err
	}

	u := fmt.Sprintf("%s/r/%s/top", strings.TrimRight(c.cfg.APIURL, "/"), c.cfg.Subreddit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("t", "day")
	if after != "" {
		q.Set("after", after)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: fetch r/%s: %v", ErrUnavailable, c.cfg.Subreddit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: r/%s: status %d", ErrUnavailable, c.cfg.Subreddit, resp.StatusCode)
	}

	var l listing
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return nil, "", fmt.Errorf("%w: decode r/%s: %v", ErrMalformed, c.cfg.Subreddit, err)
	}

	return memesFromListing(l, c.now().UTC()), l.Data.After, nil
}

// token returns the cached access token, requesting a fresh one via the
// client-credentials grant when missing or about to expire.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token: status %d", ErrUnavailable, resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrMalformed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrMalformed)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSkew)
	return c.accessToken, nil
}

type listing struct {
	Data struct {
		After    string         `json:"after"`
		Children []listingChild `json:"children"`
	} `json:"data"`
}

type listingChild struct {
	Data listingPost `json:"data"`
}

type listingPost struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	URL                 string  `json:"url"`
	URLOverriddenByDest string  `json:"url_overridden_by_dest"`
	Score               int     `json:"score"`
	UpvoteRatio         float64 `json:"upvote_ratio"`
	Author              string  `json:"author"`
	NumComments         int     `json:"num_comments"`
	Permalink           string  `json:"permalink"`
	Thumbnail           string  `json:"thumbnail"`
	IsVideo             bool    `json:"is_video"`
	CreatedUTC          float64 `json:"created_utc"`
}

func memesFromListing(l listing, fetchedAt time.Time) []models.Meme {
	memes := make([]models.Meme, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		p := child.Data

		imageURL := p.URLOverriddenByDest
		if imageURL == "" {
			imageURL = p.URL
		}

		var thumbnail *string
		if p.Thumbnail != "" {
			t := p.Thumbnail
			thumbnail = &t
		}

		memes = append(memes, models.Meme{
			ID:          p.ID,
			Title:       p.Title,
			ImageURL:    imageURL,
			Score:       p.Score,
			UpvoteRatio: p.UpvoteRatio,
			Author:      p.Author,
			NumComments: p.NumComments,
			Permalink:   permalinkBase + p.Permalink,
			Thumbnail:   thumbnail,
			IsVideo:     p.IsVideo,
			CreatedAt:   time.Unix(int64(p.CreatedUTC), 0).UTC(),
			FetchedAt:   fetchedAt,
		})
	}
	return memes
}
