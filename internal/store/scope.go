package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"tracefinity/internal/outline"
)

// DefaultUser owns records when no user id is given.
const DefaultUser = "default"

// UserStores are the record stores and file area of one user.
type UserStores struct {
	Dir   string
	Tools *Store[outline.Tool]
	Bins  *Store[Bin]
}

// FilePath returns a path for a generated file inside the user's area.
func (u *UserStores) FilePath(parts ...string) string {
	return filepath.Join(append([]string{u.Dir}, parts...)...)
}

// Scope maps opaque user ids to <Root>/<user>/ and caches opened stores.
type Scope struct {
	Root string

	mu    sync.Mutex
	users map[string]*UserStores
}

// NewScope returns a scope rooted at root.
func NewScope(root string) *Scope {
	return &Scope{Root: root, users: make(map[string]*UserStores)}
}

// User opens, or returns the cached, stores for user. An empty id means
// DefaultUser.
func (s *Scope) User(user string) (*UserStores, error) {
	user, err := cleanUser(user)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[user]; ok {
		return u, nil
	}

	dir := filepath.Join(s.Root, user)
	tools, err := Open[outline.Tool](dir, "tool")
	if err != nil {
		return nil, err
	}
	bins, err := Open[Bin](dir, "bin")
	if err != nil {
		return nil, err
	}
	u := &UserStores{Dir: dir, Tools: tools, Bins: bins}
	s.users[user] = u
	return u, nil
}

// DeleteUser removes every record and file belonging to user.
func (s *Scope) DeleteUser(user string) error {
	user, err := cleanUser(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, user)
	if err := os.RemoveAll(filepath.Join(s.Root, user)); err != nil {
		return fmt.Errorf("delete user %s: %w", user, err)
	}
	log.Info().Str("user", user).Msg("deleted user storage")
	return nil
}

// cleanUser keeps a user id from escaping the storage root.
func cleanUser(user string) (string, error) {
	if user == "" {
		return DefaultUser, nil
	}
	if user == "." || user == ".." || strings.ContainsAny(user, `/\`) {
		return "", fmt.Errorf("invalid user id %q", user)
	}
	return user, nil
}
