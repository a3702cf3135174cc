package tokencache

import (
	"fmt"

	"go.etcd.io/bbolt"
)

// Bucket "caches" -> key: credential key (client id + authority), value: cache blob.
const cacheBucket = "caches"

// BoltStore keeps cache blobs in a bbolt database, one entry per credential.
// Several credentials (different client ids or authorities) can share one
// database file.
type BoltStore struct {
	db  *bbolt.DB
	key string
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (creating if needed) the database at path and scopes
// the store to the given credential key.
func NewBoltStore(path, key string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create token cache bucket: %w", err)
	}
	return &BoltStore{db: db, key: key}, nil
}

func (s *BoltStore) Load() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(cacheBucket)).Get([]byte(s.key))
		if val != nil {
			data = make([]byte, len(val))
			copy(data, val)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}
	return data, nil
}

func (s *BoltStore) Save(data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(s.key), data)
	})
}

func (s *BoltStore) Delete() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Delete([]byte(s.key))
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
