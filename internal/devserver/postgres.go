package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"taskdeck/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    username TEXT UNIQUE NOT NULL,
    full_name TEXT NOT NULL DEFAULT '',
    password_hash BYTEA
);

CREATE TABLE IF NOT EXISTS refresh_tokens (
    token TEXT PRIMARY KEY,
    user_id TEXT REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    user_id TEXT REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    priority TEXT NOT NULL DEFAULT 'medium',
    tags TEXT[] NOT NULL DEFAULT '{}',
    due_date TIMESTAMPTZ,
    remind_at TIMESTAMPTZ,
    recurrence_type TEXT NOT NULL DEFAULT 'none',
    recurrence_interval INT NOT NULL DEFAULT 1,
    scheduled_time TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

// InitPostgres opens a Postgres connection and ensures the schema exists.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// PostgresUserRepository implements UserRepository against Postgres.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a repository over the given *sql.DB.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, u User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, username, full_name, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.Username, u.FullName, u.PasswordHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) UserByID(ctx context.Context, id string) (User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx, `
		SELECT id, email, username, full_name, password_hash FROM users WHERE id = $1
	`, id))
}

func (r *PostgresUserRepository) UserByLogin(ctx context.Context, login string) (User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx, `
		SELECT id, email, username, full_name, password_hash FROM users
		WHERE username = $1 OR email = $1
	`, login))
}

func (r *PostgresUserRepository) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// PostgresTokenRepository implements TokenRepository against Postgres.
type PostgresTokenRepository struct {
	DB *sql.DB
}

// NewPostgresTokenRepository creates a repository over the given *sql.DB.
func NewPostgresTokenRepository(db *sql.DB) *PostgresTokenRepository {
	return &PostgresTokenRepository{DB: db}
}

func (r *PostgresTokenRepository) SaveRefreshToken(ctx context.Context, token, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id) VALUES ($1, $2)
	`, token, userID)
	return err
}

func (r *PostgresTokenRepository) UserForRefreshToken(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.DB.QueryRowContext(ctx, `
		SELECT user_id FROM refresh_tokens WHERE token = $1
	`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (r *PostgresTokenRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	return err
}

const taskColumns = `id, title, description, completed, priority, tags, due_date, remind_at,
	recurrence_type, recurrence_interval, scheduled_time, created_at, updated_at`

// PostgresTaskRepository implements TaskRepository against Postgres.
type PostgresTaskRepository struct {
	DB *sql.DB
}

// NewPostgresTaskRepository creates a repository over the given *sql.DB.
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{DB: db}
}

func (r *PostgresTaskRepository) TasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("TasksByUser: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresTaskRepository) TaskByID(ctx context.Context, userID, id string) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND id = $2
	`, userID, id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	return t, err
}

func (r *PostgresTaskRepository) CreateTask(ctx context.Context, userID string, t models.Task) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, completed, priority, tags,
			due_date, remind_at, recurrence_type, recurrence_interval, scheduled_time,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, t.ID, userID, t.Title, t.Description, t.Completed, t.Priority, pq.Array(t.Tags),
		nullTime(t.DueDate), nullTime(t.RemindAt), t.Recurrence, t.RecurrenceInterval,
		nullTime(t.ScheduledTime), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *PostgresTaskRepository) UpdateTask(ctx context.Context, userID string, t models.Task) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tasks SET title = $3, description = $4, completed = $5, priority = $6,
			tags = $7, due_date = $8, remind_at = $9, recurrence_type = $10,
			recurrence_interval = $11, scheduled_time = $12, updated_at = $13
		WHERE user_id = $1 AND id = $2
	`, userID, t.ID, t.Title, t.Description, t.Completed, t.Priority, pq.Array(t.Tags),
		nullTime(t.DueDate), nullTime(t.RemindAt), t.Recurrence, t.RecurrenceInterval,
		nullTime(t.ScheduledTime), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTaskRepository) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM tasks WHERE user_id = $1 AND id = $2
	`, userID, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresTaskRepository) CompletedRecurring(ctx context.Context) ([]OwnedTask, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT user_id, `+taskColumns+` FROM tasks
		WHERE completed = true AND recurrence_type <> 'none'
	`)
	if err != nil {
		return nil, fmt.Errorf("CompletedRecurring: %w", err)
	}
	defer rows.Close()

	var out []OwnedTask
	for rows.Next() {
		var userID string
		t, err := scanTask(func(dest ...any) error {
			return rows.Scan(append([]any{&userID}, dest...)...)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, OwnedTask{UserID: userID, Task: t})
	}
	return out, rows.Err()
}

// scanTask reads one task row via the given scan function.
func scanTask(scan func(dest ...any) error) (models.Task, error) {
	var t models.Task
	var due, remind, scheduled sql.NullTime
	err := scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.Priority,
		pq.Array(&t.Tags), &due, &remind, &t.Recurrence, &t.RecurrenceInterval,
		&scheduled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return models.Task{}, err
	}
	t.DueDate = timePtr(due)
	t.RemindAt = timePtr(remind)
	t.ScheduledTime = timePtr(scheduled)
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
