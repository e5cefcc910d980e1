// Package taskcache mirrors the task list into durable local storage so
// reads and writes keep working when the remote service is unreachable.
// The cache has no opinion about freshness; the sync coordinator decides
// what goes in it.
package taskcache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"taskdeck/internal/models"
	"taskdeck/internal/storage"
)

// cacheKey is the durable key holding the serialized snapshot.
const cacheKey = "tasks"

// snapshot is the persisted form of the cache: the task list plus a
// monotonically increasing local revision counter.
type snapshot struct {
	Revision int64         `json:"revision"`
	Tasks    []models.Task `json:"tasks"`
}

// Cache is the durable task-list mirror. Only the sync coordinator
// writes it; any component may read.
type Cache struct {
	mu    sync.Mutex
	store storage.Store
}

// New wraps the given durable store.
func New(store storage.Store) *Cache {
	return &Cache{store: store}
}

// Read returns the cached task list, most-recent-first. An empty cache
// yields an empty list, not an error.
func (c *Cache) Read() ([]models.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.load()
	if err != nil {
		return nil, err
	}
	return snap.Tasks, nil
}

// Write replaces the snapshot with the given list and bumps the
// revision. Duplicate task ids are dropped (first occurrence wins),
// tag sets are deduplicated and the list is ordered most-recent-first
// by creation time.
func (c *Cache) Write(tasks []models.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.load()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(tasks))
	clean := make([]models.Task, 0, len(tasks))
	for _, task := range tasks {
		if seen[task.ID] {
			continue
		}
		seen[task.ID] = true
		task.Tags = models.DedupTags(task.Tags)
		clean = append(clean, task)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].CreatedAt.After(clean[j].CreatedAt)
	})

	snap.Revision++
	snap.Tasks = clean
	return c.save(snap)
}

// Revision returns the current local revision counter.
func (c *Cache) Revision() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.load()
	if err != nil {
		return 0
	}
	return snap.Revision
}

// Clear drops the snapshot. Called on logout.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(cacheKey)
}

// load reads the snapshot from storage. Caller must hold c.mu.
func (c *Cache) load() (snapshot, error) {
	raw, ok, err := c.store.Get(cacheKey)
	if err != nil {
		return snapshot{}, fmt.Errorf("read task cache: %w", err)
	}
	if !ok {
		return snapshot{Tasks: []models.Task{}}, nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snapshot{}, fmt.Errorf("parse task cache: %w", err)
	}
	if snap.Tasks == nil {
		snap.Tasks = []models.Task{}
	}
	return snap, nil
}

// save writes the snapshot back. Caller must hold c.mu.
func (c *Cache) save(snap snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.store.Set(cacheKey, string(raw))
}
