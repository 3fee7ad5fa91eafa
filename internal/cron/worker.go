package cron

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avillalba/watertariff/internal/alerting"
	"github.com/avillalba/watertariff/internal/billing"
	"github.com/avillalba/watertariff/internal/metrics"
	"github.com/avillalba/watertariff/internal/storage"
)

const jobName = "billing_run"

// Advisory lock key shared by all worker replicas for the billing job.
const lockKey int64 = 72201

// CurrentPeriod returns the billing period for now ("YYYY-MM").
func CurrentPeriod() string {
	return time.Now().Format("2006-01")
}

// Run starts a worker that periodically re-runs billing for the current
// period. On Postgres an advisory lock ensures only one replica executes the
// job at a time; other drivers always acquire the (no-op) lock.
func Run(ctx context.Context, driver, dsn string) error {
	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	svc := billing.NewService(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())

	// Initial interval from env or default.
	// Can be integer seconds or a cron expression.
	intervalSetting := "3600"
	if raw := os.Getenv("WATERTARIFF_CRON_INTERVAL_SECONDS"); raw != "" {
		intervalSetting = raw
	}

	// Check DB for override
	if val, err := st.GetSetting(ctx, "billing_run_interval"); err == nil && val != "" {
		intervalSetting = val
	}

	// Control loop ticker (checks config and run time)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	getNextRun := func(setting string, lastRun time.Time) time.Time {
		// Try integer seconds
		if v, err := strconv.Atoi(setting); err == nil && v > 0 {
			return lastRun.Add(time.Duration(v) * time.Second)
		}
		// Try cron expression
		if sched, err := cron.ParseStandard(setting); err == nil {
			return sched.Next(lastRun)
		}
		// Fallback to hourly
		return lastRun.Add(time.Hour)
	}

	// If starting fresh, run immediately, then schedule next
	nextRun := time.Now()

	log.Printf("cron worker starting, initial setting=%q driver=%s", intervalSetting, driver)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// 1. Check for config update
			if val, err := st.GetSetting(ctx, "billing_run_interval"); err == nil && val != "" {
				if val != intervalSetting {
					log.Printf("cron: interval updated from %q to %q", intervalSetting, val)
					intervalSetting = val
					nextRun = getNextRun(intervalSetting, time.Now())
				}
			}

			// 2. Check if it's time to run
			if time.Now().Before(nextRun) {
				continue
			}

			started := time.Now()

			ok, err := st.AcquireAdvisoryLock(ctx, lockKey)
			if err != nil {
				log.Printf("cron: acquire advisory lock failed: %v", err)
				metrics.UpdateJobMetrics(jobName, started, err)
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}
			if !ok {
				// Another worker is running this job.
				log.Printf("cron: advisory lock held by another worker, skipping run")
				nextRun = getNextRun(intervalSetting, time.Now())
				continue
			}

			// We hold the lock for the duration of the job.
			var runErr error
			func() {
				defer func() {
					if _, err := st.ReleaseAdvisoryLock(ctx, lockKey); err != nil {
						log.Printf("cron: release advisory lock failed: %v", err)
					}
				}()
				runErr = executeRun(ctx, svc, alerter, CurrentPeriod())
			}()

			// Record metrics & job row.
			metrics.UpdateJobMetrics(jobName, started, runErr)
			dur := time.Since(started)
			errMsg := ""
			success := runErr == nil
			if runErr != nil {
				errMsg = runErr.Error()
			}
			if err := st.UpdateScheduledJob(ctx, jobName, started, dur, success, errMsg); err != nil {
				log.Printf("cron: update scheduled_jobs failed: %v", err)
			}

			if runErr != nil {
				log.Printf("cron: job %s completed with error: %v (duration=%s)", jobName, runErr, dur)
			} else {
				log.Printf("cron: job %s completed successfully (duration=%s)", jobName, dur)
			}

			// Schedule next run
			nextRun = getNextRun(intervalSetting, time.Now())
		}
	}
}

// RunOnce executes a single billing run for the given period. Used by the CLI
// one-shot command; it does not take the advisory lock.
func RunOnce(ctx context.Context, driver, dsn, period string) (*billing.RunResult, error) {
	st, err := storage.Open(ctx, storage.Config{Driver: driver, DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	svc := billing.NewService(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())

	res, err := svc.RunPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	reportRun(ctx, alerter, res)
	return res, nil
}

func executeRun(ctx context.Context, svc *billing.Service, alerter *alerting.Alerter, period string) error {
	res, err := svc.RunPeriod(ctx, period)
	if err != nil {
		return err
	}
	reportRun(ctx, alerter, res)
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d meters failed", res.Failed, res.Calculated+res.Skipped+res.Failed)
	}
	return nil
}

// reportRun publishes run metrics and, when meters failed, a webhook alert.
func reportRun(ctx context.Context, alerter *alerting.Alerter, res *billing.RunResult) {
	metrics.UpdateRunMetrics(res.Period, res.Calculated, res.Failed)

	if res.Failed == 0 {
		return
	}
	details := make([]alerting.MeterFailure, 0, len(res.Failures))
	for _, f := range res.Failures {
		details = append(details, alerting.MeterFailure{MeterID: f.MeterID, Code: f.Code, Error: f.Error})
	}
	alert := alerting.RunAlert{
		Period:        res.Period,
		TotalMeters:   res.Calculated + res.Skipped + res.Failed,
		Calculated:    res.Calculated,
		Skipped:       res.Skipped,
		FailedCount:   res.Failed,
		Duration:      res.Duration,
		FailedDetails: details,
		Timestamp:     time.Now(),
	}
	if err := alerter.SendRunAlert(ctx, alert); err != nil {
		log.Printf("cron: send alert failed: %v", err)
	}
}
