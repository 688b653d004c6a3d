package users

import "sync"

// MemorySource implements Store using an in-memory map
type MemorySource struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemorySource creates a new MemorySource
func NewMemorySource() *MemorySource {
	return &MemorySource{
		users: make(map[string]*User),
	}
}

// LoadUser implements Source
func (s *MemorySource) LoadUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[CanonicalUsername(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.Clone(), nil
}

// SaveUser implements Store
func (s *MemorySource) SaveUser(user *User) error {
	if err := ValidateUsername(user.Username); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(user)
	return nil
}

// AddUser adds a user to the memory source
func (s *MemorySource) AddUser(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(user)
}

// RemoveUser removes a user from memory
func (s *MemorySource) RemoveUser(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, CanonicalUsername(username))
}

func (s *MemorySource) put(user *User) {
	c := user.Clone()
	c.Username = CanonicalUsername(user.Username)
	s.users[c.Username] = c
}
