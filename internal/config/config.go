package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime option the service reads. It is built once in
// main via FromEnv and handed to the components that need it; nothing else
// reads the environment.
type Config struct {
	// HTTP server
	Port           string
	RequestTimeout time.Duration
	AllowedOrigins []string
	Debug          bool

	// Postgres (hosted, e.g. Supabase)
	DatabaseURL   string
	DBMaxOpen     int
	DBMaxIdle     int
	DBMaxLifetime time.Duration

	// Reddit upstream
	RedditClientID     string
	RedditClientSecret string
	RedditSubreddit    string
	RedditAPIURL       string
	RedditAuthURL      string
	RedditUserAgent    string
	UpstreamTimeout    time.Duration

	// Telegram reporting
	TelegramBotToken string
	TelegramChatID   string
	TelegramAPIURL   string
	ReportSchedule   string
}

const (
	defaultPort           = "8000"
	defaultRequestTimeout = 15 * time.Second
	defaultOrigins        = "http://localhost:5173,https://reddit-memes-ui.vercel.app"

	defaultDBMaxOpen     = 20
	defaultDBMaxIdle     = 20
	defaultDBMaxLifetime = 1800 * time.Second

	defaultSubreddit       = "memes"
	defaultRedditAPIURL    = "https://oauth.reddit.com"
	defaultRedditAuthURL   = "https://www.reddit.com/api/v1/access_token"
	defaultUserAgent       = "go:reddit-memes-api:v1.0"
	defaultUpstreamTimeout = 10 * time.Second

	defaultTelegramAPIURL = "https://api.telegram.org"
	defaultReportSchedule = "0 0,8,16 * * *"
)

// FromEnv builds the configuration from environment variables, applying
// defaults for everything optional. DATABASE_URL and the Reddit client
// credentials are required.
func FromEnv() (Config, error) {
	c := Config{
		Port:           getenv("PORT", defaultPort),
		RequestTimeout: getenvDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", defaultOrigins)),
		Debug:          getenvBool("DEBUG", false),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxOpen:     getenvInt("DB_MAX_OPEN", defaultDBMaxOpen),
		DBMaxIdle:     getenvInt("DB_MAX_IDLE", defaultDBMaxIdle),
		DBMaxLifetime: time.Duration(getenvInt("DB_MAX_LIFETIME", int(defaultDBMaxLifetime/time.Second))) * time.Second,

		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditSubreddit:    getenv("REDDIT_SUBREDDIT", defaultSubreddit),
		RedditAPIURL:       getenv("REDDIT_API_URL", defaultRedditAPIURL),
		RedditAuthURL:      getenv("REDDIT_AUTH_URL", defaultRedditAuthURL),
		RedditUserAgent:    getenv("REDDIT_USER_AGENT", defaultUserAgent),
		UpstreamTimeout:    getenvDuration("UPSTREAM_TIMEOUT", defaultUpstreamTimeout),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		TelegramAPIURL:   getenv("TELEGRAM_API_URL", defaultTelegramAPIURL),
		ReportSchedule:   getenv("REPORT_SCHEDULE", defaultReportSchedule),
	}

	if c.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if c.RedditClientID == "" || c.RedditClientSecret == "" {
		return Config{}, errors.New("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
	}

	return c, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
