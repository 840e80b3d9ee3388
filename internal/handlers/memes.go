package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nivashs/reddit-memes-api/internal/models"
	"github.com/nivashs/reddit-memes-api/internal/reddit"
	"github.com/nivashs/reddit-memes-api/internal/report"
	"github.com/nivashs/reddit-memes-api/internal/store"
	"github.com/nivashs/reddit-memes-api/internal/utils"
)

const (
	// DefaultLimit is used when the client does not ask for a size.
	DefaultLimit = 20
	// MaxLimit is the largest page size a client may request.
	MaxLimit = 100

	defaultTimeout = 15 * time.Second
	reportTimeout  = time.Minute
)

// MemeLister is the slice of the listing service the meme endpoints use.
type MemeLister interface {
	GetTop(ctx context.Context, limit int) ([]models.Meme, error)
	GetPaginated(ctx context.Context, limit int, after string) (models.Page, error)
	History(ctx context.Context, q store.HistoryQuery) (store.HistoryPage, error)
}

// ReportSender delivers a meme report to Telegram.
type ReportSender interface {
	Send(ctx context.Context, creds report.Credentials, limit int) error
}

type MemeHandler struct {
	service  MemeLister
	reporter ReportSender
	creds    report.Credentials
	timeout  time.Duration
	log      *slog.Logger
}

func NewMemeHandler(service MemeLister, reporter ReportSender, creds report.Credentials, timeout time.Duration, log *slog.Logger) *MemeHandler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &MemeHandler{
		service:  service,
		reporter: reporter,
		creds:    creds,
		timeout:  timeout,
		log:      log,
	}
}

// ----------- Request/Response DTOs -------------

type telegramCredentials struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type sendReportReq struct {
	Credentials *telegramCredentials `json:"credentials"`
	Limit       *int                 `json:"limit"`
}

type sendReportResp struct {
	Message             string `json:"message"`
	UsingEnvCredentials bool   `json:"using_env_credentials"`
	Limit               int    `json:"limit"`
}

// ---------------------- TOP ----------------------

// GetTop fetches fresh top memes from Reddit, stores them, and returns
// the fetched batch.
func (h *MemeHandler) GetTop(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	memes, err := h.service.GetTop(ctx, limit)
	if err != nil {
		h.writeFetchError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, memes)
}

// ---------------------- PAGINATED ----------------------

// GetPaginated walks the live Reddit listing page by page, using the
// opaque `after` token from the previous response.
func (h *MemeHandler) GetPaginated(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.service.GetPaginated(ctx, limit, r.URL.Query().Get("after"))
	if err != nil {
		h.writeFetchError(w, err)
		return
	}

	utils.JSON(w, http.StatusOK, page)
}

// ---------------------- HISTORY ----------------------

// History pages through everything stored so far, sorted by a
// whitelisted column with a keyset cursor.
func (h *MemeHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := store.HistoryQuery{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
		SortBy: r.URL.Query().Get("sort_by"),
		Order:  r.URL.Query().Get("order"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.service.History(ctx, q)
	if err != nil {
		if errors.Is(err, store.ErrBadCursor) || errors.Is(err, store.ErrBadSort) {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error("[handlers]: meme history failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	utils.JSON(w, http.StatusOK, page)
}

// ---------------------- SEND REPORT ----------------------

// SendReport posts a top-memes report to Telegram. Credentials come
// from the request body when given, otherwise from the environment, and
// the delivery itself happens in the background.
func (h *MemeHandler) SendReport(w http.ResponseWriter, r *http.Request) {
	var req sendReportReq
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		return
	}

	creds := h.creds
	usingEnv := req.Credentials == nil
	if req.Credentials != nil {
		creds = report.Credentials{
			BotToken: req.Credentials.BotToken,
			ChatID:   req.Credentials.ChatID,
		}
	}

	limit := DefaultLimit
	if req.Limit != nil {
		if *req.Limit < 1 || *req.Limit > MaxLimit {
			utils.JSONError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
			return
		}
		limit = *req.Limit
	}

	if creds.BotToken == "" {
		utils.JSONError(w, http.StatusBadRequest, "provide a Telegram bot token or set TELEGRAM_BOT_TOKEN")
		return
	}
	if creds.ChatID == "" {
		utils.JSONError(w, http.StatusBadRequest, "provide a Telegram chat ID or set TELEGRAM_CHAT_ID")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()

		if err := h.reporter.Send(ctx, creds, limit); err != nil {
			h.log.Error("[handlers]: meme report failed", "error", err)
		}
	}()

	utils.JSON(w, http.StatusOK, sendReportResp{
		Message:             "Meme report is being sent to Telegram",
		UsingEnvCredentials: usingEnv,
		Limit:               limit,
	})
}

// ---------------------- helpers ----------------------

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return DefaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > MaxLimit {
		return 0, fmt.Errorf("limit must be an integer between 1 and %d", MaxLimit)
	}
	return limit, nil
}

// writeFetchError hides upstream detail from clients. The log line
// keeps the wrapped cause.
func (h *MemeHandler) writeFetchError(w http.ResponseWriter, err error) {
	if errors.Is(err, reddit.ErrUnavailable) || errors.Is(err, reddit.ErrMalformed) {
		h.log.Error("[handlers]: upstream fetch failed", "error", err)
		utils.JSONError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	h.log.Error("[handlers]: meme fetch failed", "error", err)
	utils.JSONError(w, http.StatusInternalServerError, "internal error")
}
