package memory

import (
	"context"
	"strings"
	"sync"
)

// UserDirectory is a static identity source. An open directory accepts any non-blank id,
// which is how the service runs when the session gateway is the only authority on users.
type UserDirectory struct {
	mu    sync.RWMutex
	open  bool
	users map[string]struct{}
}

func NewUserDirectory(userIDs ...string) *UserDirectory {
	d := &UserDirectory{users: make(map[string]struct{})}
	d.Register(userIDs...)
	return d
}

func NewOpenUserDirectory() *UserDirectory {
	return &UserDirectory{open: true, users: make(map[string]struct{})}
}

func (d *UserDirectory) Register(userIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range userIDs {
		d.users[id] = struct{}{}
	}
}

func (d *UserDirectory) UserExists(_ context.Context, userID string) (bool, error) {
	if d.open {
		return strings.TrimSpace(userID) != "", nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.users[userID]
	return ok, nil
}
