package tasks

import (
	"context"
	"time"

	"github.com/seekarr/seekarr/internal/scheduler"
	"github.com/seekarr/seekarr/internal/stats"
)

const UsagePruneTaskID = "usage-prune"

// Hourly usage buckets are only consulted for the current hour; anything
// older than a couple of days is dead weight.
const usageRetention = 48 * time.Hour

// RegisterUsagePruneTask registers the daily cleanup of old hourly API usage
// buckets.
func RegisterUsagePruneTask(sched *scheduler.Scheduler, service *stats.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          UsagePruneTaskID,
		Name:        "API Usage Prune",
		Description: "Delete hourly API usage buckets past retention",
		Cron:        "30 3 * * *",
		RunOnStart:  false,
		Func: func(ctx context.Context) error {
			return service.PruneHourlyUsage(ctx, usageRetention)
		},
	})
}
