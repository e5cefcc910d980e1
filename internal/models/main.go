// Package models defines the core data structures for users, sessions and tasks.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents the authenticated user's profile as returned by the
// remote service. The authoritative copy lives server-side; this is a
// cached projection.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Email is the user's email address.
	Email string `json:"email"`
	// Name is the user's display name.
	Name string `json:"name"`
}

// TokenPair holds the access and refresh tokens backing a session.
type TokenPair struct {
	// AccessToken is the short-lived bearer token attached to API requests.
	AccessToken string `json:"access_token"`
	// RefreshToken is the long-lived token exchanged for new pairs.
	RefreshToken string `json:"refresh_token"`
	// TokenType is the token scheme, normally "bearer".
	TokenType string `json:"token_type,omitempty"`
	// ExpiresIn is the access token lifetime in seconds, when reported.
	ExpiresIn int64 `json:"expires_in,omitempty"`
}

// Priority identifies the urgency bucket of a task.
type Priority string

const (
	// PriorityLow marks a low-urgency task.
	PriorityLow Priority = "low"
	// PriorityMedium marks a normal task. It is the default.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks an urgent task.
	PriorityHigh Priority = "high"
)

// Recurrence identifies how often a task repeats.
type Recurrence string

const (
	// RecurrenceNone marks a one-off task. It is the default.
	RecurrenceNone Recurrence = "none"
	// RecurrenceDaily repeats every RecurrenceInterval days.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekly repeats every RecurrenceInterval weeks.
	RecurrenceWeekly Recurrence = "weekly"
	// RecurrenceMonthly repeats every RecurrenceInterval months.
	RecurrenceMonthly Recurrence = "monthly"
)

// tempIDPrefix marks client-generated placeholder ids for tasks the
// server has not confirmed yet.
const tempIDPrefix = "local-"

// Task is a single todo item. IDs are server-assigned; a task created
// while the service is unreachable carries a temporary id until the
// server confirms it and assigns the real one.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
	// Priority is one of low, medium, high.
	Priority Priority `json:"priority"`
	// Tags is a deduplicated set of labels.
	Tags []string `json:"tags,omitempty"`
	// DueDate is when the task should be finished, if set.
	DueDate *time.Time `json:"due_date,omitempty"`
	// RemindAt is when the user wants a reminder, if set.
	RemindAt *time.Time `json:"remind_at,omitempty"`
	// Recurrence is one of none, daily, weekly, monthly.
	Recurrence Recurrence `json:"recurrence_type"`
	// RecurrenceInterval is the repeat step, always >= 1.
	RecurrenceInterval int `json:"recurrence_interval"`
	// ScheduledTime is when the task is planned to happen. Independent
	// of Completed: completing a task does not clear its schedule.
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	// Pending marks a task created locally while the service was
	// unreachable. It is cached locally and never sent to the server.
	Pending bool `json:"pending,omitempty"`
}

// TaskDraft is the client-supplied payload for creating a task.
type TaskDraft struct {
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Completed          bool       `json:"completed"`
	Priority           Priority   `json:"priority,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	RemindAt           *time.Time `json:"remind_at,omitempty"`
	Recurrence         Recurrence `json:"recurrence_type,omitempty"`
	RecurrenceInterval int        `json:"recurrence_interval,omitempty"`
	ScheduledTime      *time.Time `json:"scheduled_time,omitempty"`
}

// NewTempID returns a fresh client-generated placeholder task id.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a client-generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// DedupTags returns tags with duplicates removed, preserving first
// occurrence order.
func DedupTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Normalize fills in defaults and enforces field invariants on a draft:
// medium priority, no recurrence, interval >= 1, deduplicated tags.
func (d *TaskDraft) Normalize() {
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if d.Recurrence == "" {
		d.Recurrence = RecurrenceNone
	}
	if d.RecurrenceInterval < 1 {
		d.RecurrenceInterval = 1
	}
	d.Tags = DedupTags(d.Tags)
}
