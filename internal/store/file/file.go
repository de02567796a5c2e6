// Package file implements the user store on a JSON-array-backed file.
//
// Every mutation is a read-modify-write of the whole file; a mutex
// serializes writers so concurrent mutations cannot interleave, and the
// final write is an atomic rename so readers never see a torn file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mfigueredo/tokenbridge/internal/store"
	"github.com/mfigueredo/tokenbridge/internal/util/atomicwrite"
)

// Store is a file-backed store.Users implementation.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store over the given file path. The file is created lazily
// on first write; a missing file reads as an empty list.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) read() ([]store.User, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var users []store.User
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	return users, nil
}

func (s *Store) write(users []store.User) error {
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	return atomicwrite.AtomicWriteFile(s.path, b, 0644)
}

func (s *Store) GetByID(ctx context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].UserID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			u := users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) Create(ctx context.Context, u store.User) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.read()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].UserID == u.UserID {
			return nil, store.ErrExists
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	users = append(users, u)
	if err := s.write(users); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListAll(ctx context.Context) ([]store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}
