package users

import (
	"errors"
	"sync"
	"time"

	"github.com/mmcdole/viking-faceauth/pkg/logging"
)

// ErrReadOnly is returned by SaveUser when the repository's source cannot
// persist users
var ErrReadOnly = errors.New("user source is read-only")

type cachedUser struct {
	user     *User
	loadedAt time.Time
}

// Repository provides cached access to user data
type Repository struct {
	source        Source
	cacheDuration time.Duration

	mu    sync.RWMutex
	cache map[string]cachedUser
}

// NewRepository creates a new Repository. A zero cacheDuration disables
// caching.
func NewRepository(source Source, cacheDuration time.Duration) *Repository {
	return &Repository{
		source:        source,
		cacheDuration: cacheDuration,
		cache:         make(map[string]cachedUser),
	}
}

// GetUser returns user data, using cache if available. The returned user is
// a copy and may be modified by the caller.
func (r *Repository) GetUser(username string) (*User, error) {
	username = CanonicalUsername(username)
	r.mu.RLock()
	cached, exists := r.cache[username]
	r.mu.RUnlock()

	if exists && time.Since(cached.loadedAt) < r.cacheDuration {
		logging.App.Debug("Using cached user data", "username", username, "cache_age", time.Since(cached.loadedAt))
		return cached.user.Clone(), nil
	}

	user, err := r.source.LoadUser(username)
	if err != nil {
		logging.App.Debug("Failed to load user from source", "username", username, "error", err)
		return nil, err
	}

	r.store(username, user)
	return user.Clone(), nil
}

// SaveUser persists user through the source and refreshes the cache
func (r *Repository) SaveUser(user *User) error {
	store, ok := r.source.(Store)
	if !ok {
		return ErrReadOnly
	}
	if err := store.SaveUser(user); err != nil {
		return err
	}

	cached := user.Clone()
	cached.Username = CanonicalUsername(user.Username)
	r.store(cached.Username, cached)
	logging.App.Debug("Saved user and refreshed cache", "username", user.Username)
	return nil
}

// RefreshUser forces a refresh of user data from the source
func (r *Repository) RefreshUser(username string) error {
	username = CanonicalUsername(username)
	logging.App.Debug("Forcing user cache refresh", "username", username)

	user, err := r.source.LoadUser(username)
	if err != nil {
		r.mu.Lock()
		delete(r.cache, username)
		r.mu.Unlock()
		return err
	}

	r.store(username, user)
	return nil
}

// UserExists checks if a user exists
func (r *Repository) UserExists(username string) (bool, error) {
	_, err := r.GetUser(username)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) store(username string, user *User) {
	if r.cacheDuration <= 0 {
		return
	}
	r.mu.Lock()
	r.cache[username] = cachedUser{user: user, loadedAt: time.Now()}
	r.mu.Unlock()
}
