package api

import (
	"time"

	"github.com/robfig/cron/v3"

	"clawmobile/internal/domain"
)

// ValidateCron checks a standard five-field expression (descriptors such as
// "@daily" are accepted too).
func ValidateCron(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return domain.NewDomainError("api.ValidateCron", domain.ErrInvalidCron, err.Error())
	}
	return nil
}

// NextRun returns the first activation of expr strictly after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, domain.NewDomainError("api.NextRun", domain.ErrInvalidCron, err.Error())
	}
	return sched.Next(from), nil
}

// fillNextRun sets NextRun (unix ms) on jobs the server left unscheduled.
// Jobs with expressions we cannot parse keep a zero NextRun.
func fillNextRun(jobs []domain.CronJob, now time.Time) {
	for i := range jobs {
		if jobs[i].NextRun != 0 || !jobs[i].Enabled {
			continue
		}
		if next, err := NextRun(jobs[i].Expression, now); err == nil {
			jobs[i].NextRun = next.UnixMilli()
		}
	}
}
