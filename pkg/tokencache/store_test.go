package tokencache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/subsealabs/osduauth/pkg/oskeyring"
)

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	data, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(data))
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	s := NewFileStore(path)

	blob := []byte(`{"version":1,"entries":{}}`)
	assert.NoError(t, s.Save(blob))

	info, err := os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, string(blob), string(got))

	assert.NoError(t, s.Delete())
	got, err = s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete())
}

func TestEncryptedFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")

	s := NewEncryptedFileStore(path, key)
	blob := []byte(`{"version":1,"entries":{"alice":{}}}`)
	assert.NoError(t, s.Save(blob))

	// The on-disk form must not leak the plaintext.
	raw, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.NotEqual(t, string(blob), string(raw))

	got, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, string(blob), string(got))

	// A different key must fail to open the box.
	var other [32]byte
	copy(other[:], "ffffffffffffffffffffffffffffffff")
	_, err = NewEncryptedFileStore(path, other).Load()
	assert.Error(t, err)
}

func TestBoltStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewBoltStore(path, "client-1|https://login.example.com/tenant")
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	defer s.Close()

	data, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(data))

	blob := []byte(`{"version":1,"entries":{}}`)
	assert.NoError(t, s.Save(blob))

	got, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, string(blob), string(got))

	assert.NoError(t, s.Delete())
	got, err = s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))
}

func TestBoltStore_SeparateKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	a, err := NewBoltStore(path, "client-a")
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	assert.NoError(t, a.Save([]byte("blob-a")))
	assert.NoError(t, a.Close())

	b, err := NewBoltStore(path, "client-b")
	if err != nil {
		t.Fatalf("failed to reopen bolt store: %v", err)
	}
	defer b.Close()
	got, err := b.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))
}

func TestKeyringStore_RoundTrip(t *testing.T) {
	svc := oskeyring.NewMemoryService()
	s := NewKeyringStore(svc, "osduauth", "client-1")

	data, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(data))

	blob := []byte(`{"version":1,"entries":{}}`)
	assert.NoError(t, s.Save(blob))

	got, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, string(blob), string(got))

	assert.NoError(t, s.Delete())
	got, err = s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(got))
}
