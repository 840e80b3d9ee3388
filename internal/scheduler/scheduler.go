// Package scheduler runs the recurring meme report on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nivashs/reddit-memes-api/internal/report"
)

// reportLimit is how many memes each scheduled report includes.
const reportLimit = 20

// jobTimeout bounds a single report run, covering both the upstream
// fetch and the Telegram delivery.
const jobTimeout = time.Minute

// Reporter sends a meme report using the given credentials.
type Reporter interface {
	Send(ctx context.Context, creds report.Credentials, limit int) error
}

// Scheduler wraps a cron runner for the periodic report job.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New returns a scheduler that is not yet running.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron: cron.New(),
		log:  log,
	}
}

// AddReportJob registers the report job under the given cron spec,
// e.g. "0 0,8,16 * * *" for three runs a day.
func (s *Scheduler) AddReportJob(spec string, reporter Reporter, creds report.Credentials) error {
	_, err := s.cron.AddFunc(spec, reportJob(reporter, creds, s.log))
	return err
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once any job
// still in flight has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// reportJob builds the closure the cron runner invokes. Runs with
// incomplete credentials are skipped rather than failed so the service
// can operate without Telegram configured.
func reportJob(reporter Reporter, creds report.Credentials, log *slog.Logger) func() {
	return func() {
		if !creds.Complete() {
			log.Info("[scheduler]: skipping report, telegram credentials not configured")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if err := reporter.Send(ctx, creds, reportLimit); err != nil {
			log.Error("[scheduler]: scheduled report failed", "error", err)
			return
		}
		log.Info("[scheduler]: scheduled report sent", "limit", reportLimit)
	}
}
