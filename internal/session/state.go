package session

import (
	"sync"
	"time"

	"taskdeck/internal/models"
)

// stateBox guards the mutable session state so readers on other
// goroutines always observe a consistent (state, user) pair.
type stateBox struct {
	mu        sync.RWMutex
	state     State
	user      *models.User
	expiresAt time.Time
}

func (b *stateBox) set(s State, u *models.User, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	b.user = u
	b.expiresAt = expiresAt
}

// setState changes only the lifecycle state. Dropping to Anonymous
// always discards the cached user projection.
func (b *stateBox) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	if s == StateAnonymous {
		b.user = nil
		b.expiresAt = time.Time{}
	}
}

func (b *stateBox) get() (State, *models.User) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.user
}
