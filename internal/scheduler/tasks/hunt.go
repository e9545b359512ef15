// Package tasks wires hunt and maintenance work into the scheduler.
package tasks

import (
	"context"
	"fmt"

	"github.com/seekarr/seekarr/internal/config"
	"github.com/seekarr/seekarr/internal/hunt"
	"github.com/seekarr/seekarr/internal/scheduler"
)

// HuntTaskID returns the task id for one instance's sweep.
func HuntTaskID(instance string) string {
	return "hunt-sweep-" + instance
}

// RegisterHuntTask registers the recurring sweep for one Sonarr instance.
// A sweep runs the missing cycle first, then the upgrade cycle, so missing
// content always gets first claim on the hourly API quota.
func RegisterHuntTask(sched *scheduler.Scheduler, service *hunt.Service, instance string, cfg *config.HuntConfig) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HuntTaskID(instance),
		Name:        fmt.Sprintf("Hunt Sweep (%s)", instance),
		Description: "Search for missing episodes and quality upgrades",
		Cron:        cfg.SweepCron,
		RunOnStart:  cfg.RunOnStart,
		Func: func(ctx context.Context) error {
			service.ProcessMissing(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			service.ProcessUpgrades(ctx)
			return ctx.Err()
		},
	})
}
