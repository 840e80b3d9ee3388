package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nivashs/reddit-memes-api/internal/models"
	"github.com/nivashs/reddit-memes-api/internal/utils"
)

// DBPinger is the connectivity probe satisfied by *sqlx.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// UpstreamChecker probes the Reddit API with a minimal fetch.
type UpstreamChecker interface {
	FetchTop(ctx context.Context, limit int, after string) ([]models.Meme, string, error)
}

type HealthHandler struct {
	db      DBPinger
	reddit  UpstreamChecker
	timeout time.Duration
	log     *slog.Logger
}

func NewHealthHandler(db DBPinger, reddit UpstreamChecker, timeout time.Duration, log *slog.Logger) *HealthHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &HealthHandler{db: db, reddit: reddit, timeout: timeout, log: log}
}

type componentStatus struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

type healthResp struct {
	Status     string                     `json:"status"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]componentStatus `json:"components"`
}

// Check probes the upstream API and the database and reports 503 when
// either is down.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResp{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Components: map[string]componentStatus{
			"api": {Status: "healthy", Details: "server is running"},
		},
	}

	if _, _, err := h.reddit.FetchTop(ctx, 1, ""); err != nil {
		h.log.Warn("[handlers]: health check, reddit unreachable", "error", err)
		resp.Components["reddit_api"] = componentStatus{
			Status:  "unhealthy",
			Details: "failed to connect to Reddit API: " + err.Error(),
		}
		resp.Status = "degraded"
	} else {
		resp.Components["reddit_api"] = componentStatus{
			Status:  "healthy",
			Details: "successfully connected to Reddit API",
		}
	}

	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn("[handlers]: health check, database unreachable", "error", err)
		resp.Components["database"] = componentStatus{
			Status:  "unhealthy",
			Details: "failed to connect to database: " + err.Error(),
		}
		resp.Status = "degraded"
	} else {
		resp.Components["database"] = componentStatus{
			Status:  "healthy",
			Details: "successfully connected to database",
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	utils.JSON(w, status, resp)
}
