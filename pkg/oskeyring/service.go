// Package oskeyring wraps the operating system keyring behind a small
// interface so token material can be stored outside the filesystem and
// swapped for an in-memory implementation in tests.
package oskeyring

import (
	"errors"
	"fmt"
	"sync"

	keyringlib "github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Get when no entry exists for the service/user pair.
var ErrNotFound = errors.New("keyring entry not found")

// Service abstracts the OS keyring.
type Service interface {
	// Get retrieves the secret stored under service/user.
	// Returns ErrNotFound when no entry exists.
	Get(service, user string) (string, error)
	// Set stores a secret under service/user, replacing any existing entry.
	Set(service, user, secret string) error
	// Delete removes the entry for service/user. Deleting a missing entry
	// is not an error.
	Delete(service, user string) error
}

// DefaultService talks to the real OS keyring via zalando/go-keyring.
type DefaultService struct{}

var _ Service = (*DefaultService)(nil)

func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

func (s *DefaultService) Get(service, user string) (string, error) {
	secret, err := keyringlib.Get(service, user)
	if err != nil {
		if errors.Is(err, keyringlib.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read from OS keyring: %w", err)
	}
	return secret, nil
}

func (s *DefaultService) Set(service, user, secret string) error {
	return keyringlib.Set(service, user, secret)
}

func (s *DefaultService) Delete(service, user string) error {
	err := keyringlib.Delete(service, user)
	if err != nil && !errors.Is(err, keyringlib.ErrNotFound) {
		return fmt.Errorf("failed to delete from OS keyring: %w", err)
	}
	return nil
}

// MemoryService is an in-memory Service for tests.
type MemoryService struct {
	mu      sync.RWMutex
	entries map[string]string
}

var _ Service = (*MemoryService)(nil)

func NewMemoryService() *MemoryService {
	return &MemoryService{entries: make(map[string]string)}
}

func memKey(service, user string) string {
	return service + "\x00" + user
}

func (s *MemoryService) Get(service, user string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.entries[memKey(service, user)]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (s *MemoryService) Set(service, user, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memKey(service, user)] = secret
	return nil
}

func (s *MemoryService) Delete(service, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memKey(service, user))
	return nil
}
