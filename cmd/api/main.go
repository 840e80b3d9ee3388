package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/nivashs/reddit-memes-api/internal/config"
	"github.com/nivashs/reddit-memes-api/internal/db"
	"github.com/nivashs/reddit-memes-api/internal/handlers"
	"github.com/nivashs/reddit-memes-api/internal/middleware"
	"github.com/nivashs/reddit-memes-api/internal/reddit"
	"github.com/nivashs/reddit-memes-api/internal/report"
	"github.com/nivashs/reddit-memes-api/internal/scheduler"
	"github.com/nivashs/reddit-memes-api/internal/service"
	"github.com/nivashs/reddit-memes-api/internal/store"
)

var slogLevel = new(slog.LevelVar)

func init() {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("[main]: no .env file found")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("[main]: cannot load config", "error", err)
		os.Exit(1)
	}
	if cfg.Debug {
		slogLevel.Set(slog.LevelDebug)
	}

	dbConn, err := db.Connect(db.Config{
		DSN:         cfg.DatabaseURL,
		MaxOpen:     cfg.DBMaxOpen,
		MaxIdle:     cfg.DBMaxIdle,
		MaxLifetime: cfg.DBMaxLifetime,
	})
	if err != nil {
		slog.Error("[main]: cannot connect to database", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.EnsureSchema(context.Background(), dbConn); err != nil {
		slog.Error("[main]: cannot create schema", "error", err)
		os.Exit(1)
	}

	redditClient, err := reddit.NewClient(reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Subreddit:    cfg.RedditSubreddit,
		APIURL:       cfg.RedditAPIURL,
		AuthURL:      cfg.RedditAuthURL,
		UserAgent:    cfg.RedditUserAgent,
		Timeout:      cfg.UpstreamTimeout,
	})
	if err != nil {
		slog.Error("[main]: cannot build reddit client", "error", err)
		os.Exit(1)
	}

	memeStore := store.New(dbConn)
	memeService := service.New(redditClient, memeStore, slog.Default())
	reporter := report.New(redditClient, cfg.TelegramAPIURL)
	envCreds := report.Credentials{BotToken: cfg.TelegramBotToken, ChatID: cfg.TelegramChatID}

	h := handlers.NewHandler(handlers.Deps{
		DB:       dbConn,
		Service:  memeService,
		Reddit:   redditClient,
		Reporter: reporter,
		Creds:    envCreds,
		Timeout:  cfg.RequestTimeout,
		Log:      slog.Default(),
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(slog.Default()))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health.Check)
	r.Get("/memes/top", h.Memes.GetTop)
	r.Get("/memes/paginated", h.Memes.GetPaginated)
	r.Get("/memes/allmemes", h.Memes.History)
	r.Post("/memes/send-report", h.Memes.SendReport)

	var sched *scheduler.Scheduler
	if cfg.ReportSchedule != "" {
		sched = scheduler.New(slog.Default())
		if err := sched.AddReportJob(cfg.ReportSchedule, reporter, envCreds); err != nil {
			slog.Error("[main]: invalid report schedule", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("[main]: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[main]: listen failed", "error", err)
			os.Exit(1)
		}
	}()

	if sched != nil {
		sched.Start()
		slog.Info("[main]: report scheduler started", "schedule", cfg.ReportSchedule)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("[main]: shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("[main]: server forced to shutdown", "error", err)
	}
	if sched != nil {
		<-sched.Stop().Done()
	}

	slog.Info("[main]: server exited")
}
