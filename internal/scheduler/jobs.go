package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/dedupe"
	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
)

// LoadComputer derives the training load of one user and day.
type LoadComputer interface {
	Compute(ctx context.Context, userID string, date time.Time) (domain.TrainingLoad, error)
}

// ReadinessScorer scores a day from synced signals.
type ReadinessScorer interface {
	Auto(ctx context.Context, userID string, date time.Time) (domain.Readiness, error)
}

// DuplicateScanner runs and applies a pairwise duplicate scan for one user.
type DuplicateScanner interface {
	Scan(ctx context.Context, userID string, days int) (dedupe.ApplySummary, error)
}

// NightlyJob refreshes training load and automatic readiness for every user
// active during the previous day.
type NightlyJob struct {
	users     domain.UserDirectory
	loads     LoadComputer
	readiness ReadinessScorer
	log       zerolog.Logger
	now       func() time.Time
}

// NewNightlyJob constructs a NightlyJob.
func NewNightlyJob(users domain.UserDirectory, loads LoadComputer, readiness ReadinessScorer, log zerolog.Logger) *NightlyJob {
	return &NightlyJob{
		users:     users,
		loads:     loads,
		readiness: readiness,
		log:       log.With().Str("job", "nightly_readiness").Logger(),
		now:       time.Now,
	}
}

// Name implements Job.
func (j *NightlyJob) Name() string { return "nightly_readiness" }

// Run implements Job.
func (j *NightlyJob) Run(ctx context.Context) error {
	_, err := j.RunFor(ctx, j.now())
	return err
}

// RunFor processes the day containing date. Only a failed user lookup fails
// the run; per-user failures are counted in the summary.
func (j *NightlyJob) RunFor(ctx context.Context, date time.Time) (domain.BatchSummary, error) {
	day := domain.DateOf(date)
	var summary domain.BatchSummary

	users, err := j.users.ListActiveUsers(ctx, day.AddDate(0, 0, -1))
	if err != nil {
		return summary, fmt.Errorf("list active users: %w", err)
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		summary.Processed++
		if _, err := j.loads.Compute(ctx, userID, day); err != nil {
			summary.Fail(userID, err)
			observability.RecordBatchError("training_load")
			continue
		}
		if _, err := j.readiness.Auto(ctx, userID, day); err != nil {
			summary.Fail(userID, err)
			observability.RecordBatchError("auto_readiness")
			continue
		}
		summary.Succeeded++
	}

	logSummary(j.log, summary).Time("date", day).Msg("nightly readiness finished")
	return summary, ctx.Err()
}

// ScanJob runs the owner-wide duplicate scan for recently active users.
type ScanJob struct {
	users   domain.UserDirectory
	scanner DuplicateScanner
	days    int
	log     zerolog.Logger
	now     func() time.Time
}

// NewScanJob constructs a ScanJob covering the trailing days.
func NewScanJob(users domain.UserDirectory, scanner DuplicateScanner, days int, log zerolog.Logger) *ScanJob {
	if days <= 0 {
		days = 7
	}
	return &ScanJob{
		users:   users,
		scanner: scanner,
		days:    days,
		log:     log.With().Str("job", "duplicate_scan").Logger(),
		now:     time.Now,
	}
}

// Name implements Job.
func (j *ScanJob) Name() string { return "duplicate_scan" }

// Run implements Job.
func (j *ScanJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce scans every user active within the window and returns the merged
// apply summary.
func (j *ScanJob) RunOnce(ctx context.Context) (dedupe.ApplySummary, error) {
	var total dedupe.ApplySummary
	users, err := j.users.ListActiveUsers(ctx, j.now().UTC().AddDate(0, 0, -j.days))
	if err != nil {
		return total, fmt.Errorf("list active users: %w", err)
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		summary, err := j.scanner.Scan(ctx, userID, j.days)
		if err != nil {
			total.Processed++
			total.Fail(userID, err)
			observability.RecordBatchError("duplicate_scan")
			continue
		}
		total.Created += summary.Created
		total.AutoMerged += summary.AutoMerged
		total.Skipped += summary.Skipped
		total.Processed += summary.Processed
		total.Succeeded += summary.Succeeded
		total.Failed += summary.Failed
		total.Errors = append(total.Errors, summary.Errors...)
	}

	logSummary(j.log, total.BatchSummary).
		Int("users", len(users)).
		Int("auto_merged", total.AutoMerged).
		Int("review_requests", total.Created).
		Msg("duplicate scan finished")
	return total, ctx.Err()
}

func logSummary(log zerolog.Logger, summary domain.BatchSummary) *zerolog.Event {
	event := log.Info()
	if summary.Failed > 0 {
		event = log.Warn().Strs("errors", summary.Errors)
	}
	return event.
		Int("processed", summary.Processed).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed)
}
