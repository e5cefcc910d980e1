// Package syncer keeps the user-visible task list correct under
// unreliable connectivity. Mutations are applied optimistically and
// reconciled against the server's authoritative response; failures keep
// the local state rather than rolling it back, favoring availability
// over strict consistency for a single-user list.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskdeck/internal/gateway"
	"taskdeck/internal/models"
	"taskdeck/internal/taskcache"
)

const tasksEndpoint = "/api/tasks"

// ErrUnknownTask is returned for mutations on an id that is not in the
// visible list.
var ErrUnknownTask = errors.New("unknown task id")

// Coordinator applies optimistic local mutations, confirms them against
// the remote service and keeps the offline cache consistent. It is the
// only writer of the cache.
type Coordinator struct {
	gw    *gateway.Gateway
	cache *taskcache.Cache
	log   *zap.Logger

	mu     sync.Mutex
	loaded bool
	tasks  []models.Task
}

// New constructs a coordinator over the given gateway and cache.
func New(gw *gateway.Gateway, cache *taskcache.Cache, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{gw: gw, cache: cache, log: log}
}

// hydrateLocked seeds the visible list from the durable cache the first
// time it is touched. A coordinator in a fresh process would otherwise
// start from an empty list and mirror it over a cache still holding
// pending tasks from an earlier run. Caller must hold c.mu.
func (c *Coordinator) hydrateLocked() {
	if c.loaded {
		return
	}
	c.loaded = true
	cached, err := c.cache.Read()
	if err != nil {
		c.log.Warn("failed to hydrate from task cache", zap.Error(err))
		return
	}
	c.tasks = cached
}

// Tasks returns a copy of the current visible list.
func (c *Coordinator) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked()
	out := make([]models.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Completed returns the visible tasks that are done.
func (c *Coordinator) Completed() []models.Task {
	return c.filter(func(t models.Task) bool { return t.Completed })
}

// Incomplete returns the visible tasks still to do.
func (c *Coordinator) Incomplete() []models.Task {
	return c.filter(func(t models.Task) bool { return !t.Completed })
}

func (c *Coordinator) filter(keep func(models.Task) bool) []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked()
	var out []models.Task
	for _, t := range c.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

// Load fetches the authoritative list from the service. On success the
// cache is overwritten with it. On any network or auth failure it falls
// back to the cached list so the caller is never blocked on
// connectivity; only a failure of both surfaces an error.
func (c *Coordinator) Load(ctx context.Context) ([]models.Task, error) {
	payload, err := c.gw.Execute(ctx, http.MethodGet, tasksEndpoint, nil)
	if err == nil {
		var remote []models.Task
		if decodeErr := json.Unmarshal(payload, &remote); decodeErr == nil {
			return c.adoptRemote(remote), nil
		}
		err = fmt.Errorf("decode task list: invalid payload")
	}

	c.log.Warn("remote task load failed, serving cached list", zap.Error(err))
	cached, cacheErr := c.cache.Read()
	if cacheErr != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	c.mu.Lock()
	c.loaded = true
	c.tasks = cached
	c.mu.Unlock()
	return c.Tasks(), nil
}

// adoptRemote replaces the visible list and cache with the server's
// list, preserving locally created tasks the server does not know yet.
func (c *Coordinator) adoptRemote(remote []models.Task) []models.Task {
	c.mu.Lock()
	c.hydrateLocked()
	var pending []models.Task
	for _, t := range c.tasks {
		if t.Pending {
			pending = append(pending, t)
		}
	}
	c.tasks = append(pending, remote...)
	c.writeCacheLocked()
	c.mu.Unlock()
	return c.Tasks()
}

// Create optimistically inserts a task with a temporary id so the user
// sees instant feedback, then issues the remote create. On success the
// temporary entry is replaced by the server-confirmed entity in both
// the visible list and the cache. On failure the entry is retained and
// marked pending for a later FlushPending, and the error is reported.
func (c *Coordinator) Create(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	draft.Normalize()
	now := time.Now()
	temp := models.Task{
		ID:                 models.NewTempID(),
		Title:              draft.Title,
		Description:        draft.Description,
		Completed:          draft.Completed,
		Priority:           draft.Priority,
		Tags:               draft.Tags,
		DueDate:            draft.DueDate,
		RemindAt:           draft.RemindAt,
		Recurrence:         draft.Recurrence,
		RecurrenceInterval: draft.RecurrenceInterval,
		ScheduledTime:      draft.ScheduledTime,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	c.mu.Lock()
	c.hydrateLocked()
	c.tasks = append([]models.Task{temp}, c.tasks...)
	c.writeCacheLocked()
	c.mu.Unlock()

	confirmed, err := c.createRemote(ctx, draft)
	if err != nil {
		c.log.Warn("task create failed, keeping local copy for later sync",
			zap.String("temp_id", temp.ID), zap.Error(err))
		temp.Pending = true
		c.replace(temp.ID, temp)
		return temp, fmt.Errorf("create task: %w", err)
	}

	c.replace(temp.ID, confirmed)
	return confirmed, nil
}

// ToggleComplete optimistically flips the completed flag, then issues
// the remote toggle. The server's returned value is authoritative on
// success; on failure the optimistic flip is kept, not rolled back.
func (c *Coordinator) ToggleComplete(ctx context.Context, id string) (models.Task, error) {
	c.mu.Lock()
	c.hydrateLocked()
	idx := c.indexLocked(id)
	if idx < 0 {
		c.mu.Unlock()
		return models.Task{}, ErrUnknownTask
	}
	c.tasks[idx].Completed = !c.tasks[idx].Completed
	c.tasks[idx].UpdatedAt = time.Now()
	flipped := c.tasks[idx]
	c.writeCacheLocked()
	c.mu.Unlock()

	payload, err := c.gw.Execute(ctx, http.MethodPatch, tasksEndpoint+"/"+id+"/complete", nil)
	if err != nil {
		c.log.Warn("task toggle failed, keeping optimistic state",
			zap.String("id", id), zap.Error(err))
		return flipped, fmt.Errorf("toggle task: %w", err)
	}

	var confirmed models.Task
	if err := json.Unmarshal(payload, &confirmed); err != nil {
		return flipped, nil
	}
	c.replace(id, confirmed)
	return confirmed, nil
}

// Delay reschedules a task. The new scheduled time is server-computed,
// so no optimistic update applies; on failure nothing changes locally.
func (c *Coordinator) Delay(ctx context.Context, id string, minutes int) (models.Task, error) {
	payload, err := c.gw.Execute(ctx, http.MethodPatch, tasksEndpoint+"/"+id+"/delay", map[string]int{
		"delay_minutes": minutes,
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("delay task: %w", err)
	}

	var confirmed models.Task
	if err := json.Unmarshal(payload, &confirmed); err != nil {
		return models.Task{}, fmt.Errorf("decode delayed task: %w", err)
	}
	c.replace(id, confirmed)
	return confirmed, nil
}

// Delete removes a task remotely and then locally. On failure the task
// stays visible and the error is reported.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if _, err := c.gw.Execute(ctx, http.MethodDelete, tasksEndpoint+"/"+id, nil); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	c.mu.Lock()
	c.hydrateLocked()
	idx := c.indexLocked(id)
	if idx >= 0 {
		c.tasks = append(c.tasks[:idx], c.tasks[idx+1:]...)
		c.writeCacheLocked()
	}
	c.mu.Unlock()
	return nil
}

// FlushPending retries the remote create for tasks that were created
// while the service was unreachable. Each success swaps the temporary
// id for the server-assigned one. Returns how many were flushed and the
// last error encountered, if any.
func (c *Coordinator) FlushPending(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.hydrateLocked()
	var pending []models.Task
	for _, t := range c.tasks {
		if t.Pending {
			pending = append(pending, t)
		}
	}
	c.mu.Unlock()

	var flushed int
	var lastErr error
	for _, t := range pending {
		draft := models.TaskDraft{
			Title:              t.Title,
			Description:        t.Description,
			Completed:          t.Completed,
			Priority:           t.Priority,
			Tags:               t.Tags,
			DueDate:            t.DueDate,
			RemindAt:           t.RemindAt,
			Recurrence:         t.Recurrence,
			RecurrenceInterval: t.RecurrenceInterval,
			ScheduledTime:      t.ScheduledTime,
		}
		confirmed, err := c.createRemote(ctx, draft)
		if err != nil {
			lastErr = err
			continue
		}
		c.replace(t.ID, confirmed)
		flushed++
	}

	if lastErr != nil {
		return flushed, fmt.Errorf("flush pending tasks: %w", lastErr)
	}
	return flushed, nil
}

// createRemote issues the remote create and decodes the confirmed task.
func (c *Coordinator) createRemote(ctx context.Context, draft models.TaskDraft) (models.Task, error) {
	payload, err := c.gw.Execute(ctx, http.MethodPost, tasksEndpoint, draft)
	if err != nil {
		return models.Task{}, err
	}
	var confirmed models.Task
	if err := json.Unmarshal(payload, &confirmed); err != nil {
		return models.Task{}, &gateway.APIError{Kind: gateway.KindServer, Message: "unparseable create response"}
	}
	if confirmed.ID == "" {
		return models.Task{}, &gateway.APIError{Kind: gateway.KindServer, Message: "create response without id"}
	}
	return confirmed, nil
}

// replace swaps the entry with the given id for task (which may carry a
// different, server-assigned id) in the visible list and the cache.
func (c *Coordinator) replace(id string, task models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hydrateLocked()
	idx := c.indexLocked(id)
	if idx < 0 {
		return
	}
	c.tasks[idx] = task
	c.writeCacheLocked()
}

// indexLocked finds a task by id. Caller must hold c.mu.
func (c *Coordinator) indexLocked(id string) int {
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// writeCacheLocked mirrors the visible list into the cache. Caller must
// hold c.mu. Cache write failures are logged, never surfaced: the
// visible state is already correct and the next successful write heals
// the mirror.
func (c *Coordinator) writeCacheLocked() {
	if err := c.cache.Write(c.tasks); err != nil {
		c.log.Warn("failed to write task cache", zap.Error(err))
	}
}
