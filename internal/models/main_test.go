package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempIDs(t *testing.T) {
	id := NewTempID()
	assert.True(t, IsTempID(id))
	assert.False(t, IsTempID("b9c7c3c0-1111-2222-3333-444455556666"))

	// Two generated ids never collide.
	assert.NotEqual(t, id, NewTempID())
}

func TestDedupTags(t *testing.T) {
	assert.Nil(t, DedupTags(nil))
	assert.Equal(t, []string{"work", "urgent"}, DedupTags([]string{"work", "work", "urgent", "", "work"}))
}

func TestDraftNormalize(t *testing.T) {
	d := TaskDraft{Title: "x", Tags: []string{"a", "a"}}
	d.Normalize()
	assert.Equal(t, PriorityMedium, d.Priority)
	assert.Equal(t, RecurrenceNone, d.Recurrence)
	assert.Equal(t, 1, d.RecurrenceInterval)
	assert.Equal(t, []string{"a"}, d.Tags)

	// Explicit values survive normalization.
	d = TaskDraft{Title: "y", Priority: PriorityHigh, Recurrence: RecurrenceWeekly, RecurrenceInterval: 3}
	d.Normalize()
	assert.Equal(t, PriorityHigh, d.Priority)
	assert.Equal(t, RecurrenceWeekly, d.Recurrence)
	assert.Equal(t, 3, d.RecurrenceInterval)
}
