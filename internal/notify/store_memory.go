package notify

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps follows, preferences and notifications in memory. It
// implements FollowerStore and NotificationStore for the file storage mode.
type MemoryStore struct {
	mu            sync.RWMutex
	follows       map[string]map[string]struct{} // package -> users
	users         map[string]Follower
	notifications []Record
	seen          map[recordKey]struct{}
}

type recordKey struct {
	user, pkg, version string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		follows: map[string]map[string]struct{}{},
		users:   map[string]Follower{},
		seen:    map[recordKey]struct{}{},
	}
}

// PutUser stores or replaces a user's contact details and preferences
func (m *MemoryStore) PutUser(f Follower) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[f.UserID] = f
}

// Follow subscribes a user to a package
func (m *MemoryStore) Follow(userID, packageName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users, ok := m.follows[packageName]
	if !ok {
		users = map[string]struct{}{}
		m.follows[packageName] = users
	}
	users[userID] = struct{}{}
}

// ListFollowers implements FollowerStore. Followers are ordered by user id.
func (m *MemoryStore) ListFollowers(_ context.Context, packageName string) ([]Follower, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	followers := make([]Follower, 0, len(m.follows[packageName]))
	for userID := range m.follows[packageName] {
		f, ok := m.users[userID]
		if !ok {
			f = Follower{UserID: userID}
		}
		followers = append(followers, f)
	}
	sort.Slice(followers, func(i, j int) bool { return followers[i].UserID < followers[j].UserID })
	return followers, nil
}

// InsertNotification implements NotificationStore
func (m *MemoryStore) InsertNotification(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey{r.UserID, r.PackageName, r.NewVersion}
	if _, dup := m.seen[key]; dup {
		return nil
	}
	m.seen[key] = struct{}{}
	m.notifications = append(m.notifications, r)
	return nil
}

// Notifications returns a copy of the stored records for a user
func (m *MemoryStore) Notifications(userID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.notifications {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}
