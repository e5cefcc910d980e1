// Package devserver is a self-contained reference backend implementing
// the task service REST contract, for local development and end-to-end
// testing of the client. It is not hardened for production use.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskdeck/internal/models"
)

// accessTokenTTL is the issued access token lifetime.
const accessTokenTTL = 15 * time.Minute

var (
	// ErrInvalidCredentials is returned for a bad login or a revoked
	// refresh token.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for an unparseable or expired access token.
	ErrInvalidToken = errors.New("invalid token")
)

// AuthService implements registration, password login, token refresh
// and logout, delegating persistence to the repositories.
type AuthService struct {
	users  UserRepository
	tokens TokenRepository
	secret []byte
	now    func() time.Time
}

// NewAuthService constructs an AuthService signing access tokens with
// the given secret.
func NewAuthService(users UserRepository, tokens TokenRepository, secret []byte) *AuthService {
	return &AuthService{users: users, tokens: tokens, secret: secret, now: time.Now}
}

// Register creates an account and returns a fresh token pair.
func (s *AuthService) Register(ctx context.Context, email, password, username, fullName string) (models.TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		FullName:     fullName,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return models.TokenPair{}, err
	}
	return s.issuePair(ctx, user.ID)
}

// Login verifies credentials and returns a fresh token pair. The login
// field may be a username or an email.
func (s *AuthService) Login(ctx context.Context, login, password string) (models.TokenPair, error) {
	user, err := s.users.UserByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		return models.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return models.TokenPair{}, ErrInvalidCredentials
	}
	return s.issuePair(ctx, user.ID)
}

// Refresh rotates a refresh token: the presented token is revoked and a
// new pair is issued. An unknown token yields ErrInvalidCredentials, so
// a stolen-then-replayed token cannot mint sessions forever.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	userID, err := s.tokens.UserForRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrNotFound) {
		return models.TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := s.tokens.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return models.TokenPair{}, err
	}
	return s.issuePair(ctx, userID)
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.DeleteRefreshToken(ctx, refreshToken)
}

// Profile returns the public projection of an account.
func (s *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	name := user.FullName
	if name == "" {
		name = user.Username
	}
	return models.User{ID: user.ID, Email: user.Email, Name: name}, nil
}

// SessionFor finds or creates the account for an externally
// authenticated identity (OAuth) and returns a token pair for it.
func (s *AuthService) SessionFor(ctx context.Context, email, name string) (models.TokenPair, error) {
	user, err := s.users.UserByLogin(ctx, email)
	if errors.Is(err, ErrNotFound) {
		user = User{
			ID:       uuid.NewString(),
			Email:    email,
			Username: email,
			FullName: name,
		}
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return models.TokenPair{}, err
	}
	return s.issuePair(ctx, user.ID)
}

// VerifyAccess parses and validates a bearer access token, returning
// the user id it was issued for.
func (s *AuthService) VerifyAccess(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// issuePair signs a new access token and stores a new refresh token.
func (s *AuthService) issuePair(ctx context.Context, userID string) (models.TokenPair, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		ID:        uuid.NewString(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := uuid.NewString()
	if err := s.tokens.SaveRefreshToken(ctx, refresh, userID); err != nil {
		return models.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

// TaskService implements task business logic over a TaskRepository.
type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

// NewTaskService constructs a TaskService.
func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo, now: time.Now}
}

// List returns the user's tasks, most recently created first.
func (s *TaskService) List(ctx context.Context, userID string) ([]models.Task, error) {
	return s.repo.TasksByUser(ctx, userID)
}

// Completed returns the user's finished tasks.
func (s *TaskService) Completed(ctx context.Context, userID string) ([]models.Task, error) {
	return s.listFiltered(ctx, userID, true)
}

// Pending returns the user's unfinished tasks.
func (s *TaskService) Pending(ctx context.Context, userID string) ([]models.Task, error) {
	return s.listFiltered(ctx, userID, false)
}

func (s *TaskService) listFiltered(ctx context.Context, userID string, completed bool) ([]models.Task, error) {
	all, err := s.repo.TasksByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.Completed == completed {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create stores a new task from a draft, assigning the authoritative id
// and timestamps.
func (s *TaskService) Create(ctx context.Context, userID string, draft models.TaskDraft) (models.Task, error) {
	draft.Normalize()
	now := s.now().UTC()
	task := models.Task{
		ID:                 uuid.NewString(),
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
	if err := s.repo.CreateTask(ctx, userID, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// ToggleComplete flips the completed flag and returns the stored task.
// The scheduled time is left untouched: completion and scheduling are
// independent.
func (s *TaskService) ToggleComplete(ctx context.Context, userID, id string) (models.Task, error) {
	task, err := s.repo.TaskByID(ctx, userID, id)
	if err != nil {
		return models.Task{}, err
	}
	task.Completed = !task.Completed
	task.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateTask(ctx, userID, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Delay reschedules a task to now + minutes, by the server clock.
func (s *TaskService) Delay(ctx context.Context, userID, id string, minutes int) (models.Task, error) {
	task, err := s.repo.TaskByID(ctx, userID, id)
	if err != nil {
		return models.Task{}, err
	}
	when := s.now().UTC().Add(time.Duration(minutes) * time.Minute)
	task.ScheduledTime = &when
	task.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateTask(ctx, userID, task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.DeleteTask(ctx, userID, id)
}
