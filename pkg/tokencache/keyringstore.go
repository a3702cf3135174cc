package tokencache

import (
	"errors"

	"github.com/subsealabs/osduauth/pkg/oskeyring"
)

// KeyringStore keeps the cache blob in the OS keyring. The blob is JSON
// text, which keyring backends store fine as a secret string.
type KeyringStore struct {
	svc     oskeyring.Service
	service string
	user    string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore scopes the store to a keyring service/user pair, typically
// the application name and the credential key.
func NewKeyringStore(svc oskeyring.Service, service, user string) *KeyringStore {
	return &KeyringStore{svc: svc, service: service, user: user}
}

func (s *KeyringStore) Load() ([]byte, error) {
	blob, err := s.svc.Get(s.service, s.user)
	if err != nil {
		if errors.Is(err, oskeyring.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(blob), nil
}

func (s *KeyringStore) Save(data []byte) error {
	return s.svc.Set(s.service, s.user, string(data))
}

func (s *KeyringStore) Delete() error {
	return s.svc.Delete(s.service, s.user)
}
