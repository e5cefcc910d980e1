package devserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/models"
)

var testSecret = []byte("test-secret")

func newTestAuthService() *AuthService {
	return NewAuthService(NewMemoryUserRepository(), NewMemoryTokenRepository(), testSecret)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "secret", "alice", "Alice A")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)

	// Login by username and by email both work.
	_, err = svc.Login(ctx, "alice", "secret")
	assert.NoError(t, err)
	_, err = svc.Login(ctx, "a@b.com", "secret")
	assert.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "a@b.com", "secret", "alice", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "a@b.com", "other", "alice2", "")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAuthService_RefreshRotatesToken(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "secret", "alice", "")
	require.NoError(t, err)

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The rotated-out token is dead.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The fresh one still works.
	_, err = svc.Refresh(ctx, next.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_LogoutRevokesRefreshToken(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "secret", "alice", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_VerifyAccess(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "secret", "alice", "")
	require.NoError(t, err)

	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, userID)

	_, err = svc.VerifyAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// A token signed with another secret is rejected.
	other := NewAuthService(NewMemoryUserRepository(), NewMemoryTokenRepository(), []byte("other"))
	otherPair, err := other.Register(ctx, "b@c.com", "secret", "bob", "")
	require.NoError(t, err)
	_, err = svc.VerifyAccess(otherPair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_VerifyAccessExpired(t *testing.T) {
	svc := newTestAuthService()
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	pair, err := svc.Register(context.Background(), "a@b.com", "secret", "alice", "")
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ProfileFallsBackToUsername(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	pair, err := svc.Register(ctx, "a@b.com", "secret", "alice", "")
	require.NoError(t, err)
	userID, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, "a@b.com", profile.Email)
}

func TestAuthService_SessionForFindsOrCreates(t *testing.T) {
	svc := newTestAuthService()
	ctx := context.Background()

	first, err := svc.SessionFor(ctx, "oauth@b.com", "OAuth User")
	require.NoError(t, err)
	firstID, err := svc.VerifyAccess(first.AccessToken)
	require.NoError(t, err)

	// Same identity maps to the same account.
	second, err := svc.SessionFor(ctx, "oauth@b.com", "OAuth User")
	require.NoError(t, err)
	secondID, err := svc.VerifyAccess(second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)
}

func newTestTaskService(now time.Time) *TaskService {
	svc := NewTaskService(NewMemoryTaskRepository())
	svc.now = func() time.Time { return now }
	return svc
}

func TestTaskService_CreateAssignsIDAndDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTaskService(now)

	task, err := svc.Create(context.Background(), "u1", models.TaskDraft{Title: "buy milk"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.PriorityMedium, task.Priority)
	assert.Equal(t, models.RecurrenceNone, task.Recurrence)
	assert.Equal(t, 1, task.RecurrenceInterval)
	assert.Equal(t, now, task.CreatedAt)
}

func TestTaskService_CompletedAndPendingViews(t *testing.T) {
	svc := newTestTaskService(time.Now())
	ctx := context.Background()

	done, err := svc.Create(ctx, "u1", models.TaskDraft{Title: "done", Completed: true})
	require.NoError(t, err)
	open, err := svc.Create(ctx, "u1", models.TaskDraft{Title: "open"})
	require.NoError(t, err)

	completed, err := svc.Completed(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	pending, err := svc.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.ID, pending[0].ID)
}

func TestTaskService_ToggleCompletePreservesSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTaskService(now)
	ctx := context.Background()

	sched := now.Add(2 * time.Hour)
	task, err := svc.Create(ctx, "u1", models.TaskDraft{Title: "t", ScheduledTime: &sched})
	require.NoError(t, err)

	toggled, err := svc.ToggleComplete(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Completed)
	require.NotNil(t, toggled.ScheduledTime)
	assert.Equal(t, sched, *toggled.ScheduledTime)

	back, err := svc.ToggleComplete(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.False(t, back.Completed)
}

func TestTaskService_DelayUsesServerClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTaskService(now)
	ctx := context.Background()

	task, err := svc.Create(ctx, "u1", models.TaskDraft{Title: "t"})
	require.NoError(t, err)

	delayed, err := svc.Delay(ctx, "u1", task.ID, 30)
	require.NoError(t, err)
	require.NotNil(t, delayed.ScheduledTime)
	assert.Equal(t, now.Add(30*time.Minute), *delayed.ScheduledTime)
}

func TestTaskService_DeleteUnknown(t *testing.T) {
	svc := newTestTaskService(time.Now())
	err := svc.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskService_IsolatesUsers(t *testing.T) {
	svc := newTestTaskService(time.Now())
	ctx := context.Background()

	task, err := svc.Create(ctx, "u1", models.TaskDraft{Title: "mine"})
	require.NoError(t, err)

	_, err = svc.ToggleComplete(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	others, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, others)
}
