package tokencache

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

// Store persists the serialized cache blob. The blob is opaque to the store.
type Store interface {
	// Load returns the stored blob, or (nil, nil) when nothing is stored yet.
	Load() ([]byte, error)
	// Save replaces the stored blob.
	Save(data []byte) error
	// Delete removes the stored blob. Deleting a missing blob is not an error.
	Delete() error
}

const secretboxNonceLen = 24

// FileStore keeps the cache blob in a single file, created with 0600.
// With a key set the blob is sealed with NaCl secretbox before it touches
// disk, nonce prepended.
type FileStore struct {
	path string
	key  *[32]byte
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a plaintext file store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewEncryptedFileStore returns a file store that seals the blob with the
// given secretbox key.
func NewEncryptedFileStore(path string, key [32]byte) *FileStore {
	return &FileStore{path: path, key: &key}
}

func (s *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token cache file: %w", err)
	}
	if s.key == nil {
		return data, nil
	}
	if len(data) < secretboxNonceLen {
		return nil, fmt.Errorf("token cache file %s is truncated", s.path)
	}
	var nonce [secretboxNonceLen]byte
	copy(nonce[:], data[:secretboxNonceLen])
	plain, ok := secretbox.Open(nil, data[secretboxNonceLen:], &nonce, s.key)
	if !ok {
		return nil, fmt.Errorf("failed to decrypt token cache file %s: wrong key or corrupt file", s.path)
	}
	return plain, nil
}

func (s *FileStore) Save(data []byte) error {
	if s.key != nil {
		var nonce [secretboxNonceLen]byte
		if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
			return fmt.Errorf("failed to generate nonce: %w", err)
		}
		data = secretbox.Seal(nonce[:], data, &nonce, s.key)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token cache directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token cache file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token cache file: %w", err)
	}
	return nil
}
