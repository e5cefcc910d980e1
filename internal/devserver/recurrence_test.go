package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/models"
)

func TestRollRecurring(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	due := now.AddDate(0, 0, -3)
	require.NoError(t, repo.CreateTask(ctx, "u1", models.Task{
		ID:                 "t1",
		Title:              "water plants",
		Completed:          true,
		Recurrence:         models.RecurrenceDaily,
		RecurrenceInterval: 1,
		DueDate:            &due,
	}))

	rolled, err := rollRecurring(ctx, repo, now)
	require.NoError(t, err)
	assert.Equal(t, 1, rolled)

	task, err := repo.TaskByID(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.False(t, task.Completed)
	require.NotNil(t, task.DueDate)
	// Stepped past now, not just one interval.
	assert.Equal(t, now.AddDate(0, 0, 1), *task.DueDate)
}

func TestRollRecurringSkipsFutureAndUndated(t *testing.T) {
	repo := NewMemoryTaskRepository()
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	future := now.AddDate(0, 0, 5)
	require.NoError(t, repo.CreateTask(ctx, "u1", models.Task{
		ID: "future", Completed: true, Recurrence: models.RecurrenceWeekly,
		RecurrenceInterval: 1, DueDate: &future,
	}))
	require.NoError(t, repo.CreateTask(ctx, "u1", models.Task{
		ID: "undated", Completed: true, Recurrence: models.RecurrenceDaily,
		RecurrenceInterval: 1,
	}))

	rolled, err := rollRecurring(ctx, repo, now)
	require.NoError(t, err)
	assert.Equal(t, 0, rolled)

	task, err := repo.TaskByID(ctx, "u1", "future")
	require.NoError(t, err)
	assert.True(t, task.Completed)
}

func TestAdvance(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, base.AddDate(0, 0, 2), advance(base, models.RecurrenceDaily, 2))
	assert.Equal(t, base.AddDate(0, 0, 14), advance(base, models.RecurrenceWeekly, 2))
	assert.Equal(t, base.AddDate(0, 3, 0), advance(base, models.RecurrenceMonthly, 3))
	// A broken interval is clamped to one step.
	assert.Equal(t, base.AddDate(0, 0, 1), advance(base, models.RecurrenceDaily, 0))
}
