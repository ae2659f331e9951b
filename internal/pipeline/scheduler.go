package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StartScheduler triggers a refresh run on a standard 5-field cron
// schedule (minute hour day-of-month month day-of-week). Examples:
// "0 2 * * *" (daily 2am), "0 2 * * 1" (Mondays 2am). An empty
// schedule disables scheduled refreshes; an invalid one is an error,
// not a silent no-op.
func StartScheduler(ctx context.Context, schedule string, runner *Runner, log *slog.Logger) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Info("scheduled refresh disabled")
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return err
	}
	log.Info("refresh scheduled", "cron", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			log.Info("next scheduled refresh", "at", next.Format(time.RFC3339))

			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
			}

			run, err := runner.Trigger()
			if errors.Is(err, ErrRunInFlight) {
				log.Warn("scheduled refresh skipped, run already in flight")
				continue
			}
			if err != nil {
				log.Error("scheduled refresh failed to start", "error", err)
				continue
			}
			log.Info("scheduled refresh started", "run_id", run.ID)
		}
	}()
	return nil
}
