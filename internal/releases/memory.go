package releases

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in memory
type MemoryStore struct {
	mu             sync.Mutex
	releases       map[string]*UpcomingRelease
	releaseFollows map[string][]Recipient
	packageFollows map[string][]Recipient
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		releases:       map[string]*UpcomingRelease{},
		releaseFollows: map[string][]Recipient{},
		packageFollows: map[string][]Recipient{},
	}
}

// Put stores or replaces a release
func (m *MemoryStore) Put(r UpcomingRelease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == "" {
		r.Status = StatusUpcoming
	}
	m.releases[r.ID] = &r
}

// Get returns a copy of a release
func (m *MemoryStore) Get(id string) (UpcomingRelease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.releases[id]
	if !ok {
		return UpcomingRelease{}, false
	}
	return *r, true
}

// FollowRelease subscribes a user to a release
func (m *MemoryStore) FollowRelease(releaseID string, rcpt Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseFollows[releaseID] = append(m.releaseFollows[releaseID], rcpt)
}

// FollowPackage subscribes a user to a package
func (m *MemoryStore) FollowPackage(packageName string, rcpt Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packageFollows[packageName] = append(m.packageFollows[packageName], rcpt)
}

// PendingForPackage implements Store
func (m *MemoryStore) PendingForPackage(_ context.Context, packageName string) ([]UpcomingRelease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []UpcomingRelease
	for _, r := range m.releases {
		if r.PackageName == packageName && r.Status == StatusUpcoming {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkReleased implements Store
func (m *MemoryStore) MarkReleased(_ context.Context, id, version string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.releases[id]
	if !ok || r.Status != StatusUpcoming {
		return false, nil
	}
	r.Status = StatusReleased
	r.ReleasedVersion = version
	r.ReleasedAt = &at
	return true, nil
}

// ReleaseFollowers implements Store
func (m *MemoryStore) ReleaseFollowers(_ context.Context, releaseID string) ([]Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Recipient(nil), m.releaseFollows[releaseID]...), nil
}

// PackageFollowers implements Store
func (m *MemoryStore) PackageFollowers(_ context.Context, packageName string) ([]Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Recipient(nil), m.packageFollows[packageName]...), nil
}
