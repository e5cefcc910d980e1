package devserver

import (
	"context"
	"errors"
	"sort"
	"sync"

	"taskdeck/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("already exists")
)

// User is the server-side account record.
type User struct {
	ID           string
	Email        string
	Username     string
	FullName     string
	PasswordHash []byte
}

// OwnedTask pairs a task with its owner, for cross-user jobs.
type OwnedTask struct {
	UserID string
	Task   models.Task
}

// UserRepository defines the persistence operations required by the
// authentication service.
type UserRepository interface {
	// CreateUser stores a new account. Returns ErrDuplicate if the
	// username or email is taken.
	CreateUser(ctx context.Context, u User) error
	// UserByID fetches an account by id. Returns ErrNotFound if absent.
	UserByID(ctx context.Context, id string) (User, error)
	// UserByLogin fetches an account by username or email.
	UserByLogin(ctx context.Context, login string) (User, error)
}

// TokenRepository tracks issued refresh tokens so they can be rotated
// and revoked.
type TokenRepository interface {
	// SaveRefreshToken binds a refresh token to a user.
	SaveRefreshToken(ctx context.Context, token, userID string) error
	// UserForRefreshToken resolves a refresh token to its user id.
	// Returns ErrNotFound for unknown or revoked tokens.
	UserForRefreshToken(ctx context.Context, token string) (string, error)
	// DeleteRefreshToken revokes a refresh token. Revoking an unknown
	// token is not an error.
	DeleteRefreshToken(ctx context.Context, token string) error
}

// TaskRepository defines the persistence operations required by the
// task service.
type TaskRepository interface {
	// TasksByUser returns the user's tasks, most recently created first.
	TasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	// TaskByID fetches one task. Returns ErrNotFound if absent.
	TaskByID(ctx context.Context, userID, id string) (models.Task, error)
	// CreateTask stores a new task.
	CreateTask(ctx context.Context, userID string, t models.Task) error
	// UpdateTask replaces a stored task. Returns ErrNotFound if absent.
	UpdateTask(ctx context.Context, userID string, t models.Task) error
	// DeleteTask removes a task. Returns ErrNotFound if absent.
	DeleteTask(ctx context.Context, userID, id string) error
	// CompletedRecurring returns all completed tasks with a recurrence
	// rule, across users, for the recurrence job.
	CompletedRecurring(ctx context.Context) ([]OwnedTask, error)
}

// MemoryUserRepository is a map-backed UserRepository for development
// and tests.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]User)}
}

func (r *MemoryUserRepository) CreateUser(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *MemoryUserRepository) UserByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) UserByLogin(ctx context.Context, login string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// MemoryTokenRepository is a map-backed TokenRepository.
type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]string)}
}

func (r *MemoryTokenRepository) SaveRefreshToken(ctx context.Context, token, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = userID
	return nil
}

func (r *MemoryTokenRepository) UserForRefreshToken(ctx context.Context, token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	return userID, nil
}

func (r *MemoryTokenRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

// MemoryTaskRepository is a map-backed TaskRepository.
type MemoryTaskRepository struct {
	mu    sync.Mutex
	tasks map[string]map[string]models.Task // userID → taskID → task
}

func NewMemoryTaskRepository() *MemoryTaskRepository {
	return &MemoryTaskRepository{tasks: make(map[string]map[string]models.Task)}
}

func (r *MemoryTaskRepository) TasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks[userID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryTaskRepository) TaskByID(ctx context.Context, userID, id string) (models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[userID][id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryTaskRepository) CreateTask(ctx context.Context, userID string, t models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[userID] == nil {
		r.tasks[userID] = make(map[string]models.Task)
	}
	r.tasks[userID][t.ID] = t
	return nil
}

func (r *MemoryTaskRepository) UpdateTask(ctx context.Context, userID string, t models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[userID][t.ID]; !ok {
		return ErrNotFound
	}
	r.tasks[userID][t.ID] = t
	return nil
}

func (r *MemoryTaskRepository) DeleteTask(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[userID][id]; !ok {
		return ErrNotFound
	}
	delete(r.tasks[userID], id)
	return nil
}

func (r *MemoryTaskRepository) CompletedRecurring(ctx context.Context) ([]OwnedTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OwnedTask
	for userID, tasks := range r.tasks {
		for _, t := range tasks {
			if t.Completed && t.Recurrence != models.RecurrenceNone {
				out = append(out, OwnedTask{UserID: userID, Task: t})
			}
		}
	}
	return out, nil
}
