package handlers

import (
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nivashs/reddit-memes-api/internal/report"
)

// Deps carries the wiring for every endpoint group.
type Deps struct {
	DB       *sqlx.DB
	Service  MemeLister
	Reddit   UpstreamChecker
	Reporter ReportSender
	Creds    report.Credentials
	Timeout  time.Duration
	Log      *slog.Logger
}

type Handler struct {
	Memes  *MemeHandler
	Health *HealthHandler
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		Memes:  NewMemeHandler(d.Service, d.Reporter, d.Creds, d.Timeout, d.Log),
		Health: NewHealthHandler(d.DB, d.Reddit, d.Timeout, d.Log),
	}
}
