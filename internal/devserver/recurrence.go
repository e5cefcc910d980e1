package devserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskdeck/internal/models"
)

// StartRecurrenceJob periodically rolls completed recurring tasks over
// to their next occurrence: the completed flag is reset and the due
// date advances by the recurrence step until it is in the future.
func StartRecurrenceJob(ctx context.Context, repo TaskRepository, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rolled, err := rollRecurring(ctx, repo, time.Now().UTC())
				if err != nil {
					log.Error("failed to roll recurring tasks", zap.Error(err))
					continue
				}
				if rolled > 0 {
					log.Info("rolled recurring tasks", zap.Int("count", rolled))
				}
			}
		}
	}()
}

// rollRecurring advances every completed recurring task whose due date
// has passed. Returns how many tasks were rolled over.
func rollRecurring(ctx context.Context, repo TaskRepository, now time.Time) (int, error) {
	candidates, err := repo.CompletedRecurring(ctx)
	if err != nil {
		return 0, err
	}

	var rolled int
	for _, owned := range candidates {
		task := owned.Task
		if task.DueDate == nil || task.DueDate.After(now) {
			continue
		}

		next := *task.DueDate
		for !next.After(now) {
			next = advance(next, task.Recurrence, task.RecurrenceInterval)
		}
		task.DueDate = &next
		task.Completed = false
		task.UpdatedAt = now

		if err := repo.UpdateTask(ctx, owned.UserID, task); err != nil {
			return rolled, err
		}
		rolled++
	}
	return rolled, nil
}

// advance steps a time forward by one recurrence interval.
func advance(t time.Time, recurrence models.Recurrence, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch recurrence {
	case models.RecurrenceDaily:
		return t.AddDate(0, 0, interval)
	case models.RecurrenceWeekly:
		return t.AddDate(0, 0, 7*interval)
	case models.RecurrenceMonthly:
		return t.AddDate(0, interval, 0)
	}
	return t.AddDate(0, 0, interval)
}
