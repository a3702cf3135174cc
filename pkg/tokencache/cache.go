// Package tokencache holds the persisted refresh-token material a credential
// needs for silent acquisition, together with the pluggable stores the
// serialized cache blob lives in (file, bbolt, OS keyring).
package tokencache

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/subsealabs/osduauth"
)

// wireVersion is bumped when the serialized layout changes incompatibly.
const wireVersion = 1

// Account identifies a signed-in user within the cache.
type Account struct {
	Username string `json:"username"`
	// HomeID is the authority-assigned account identifier, when known.
	HomeID string `json:"home_id,omitempty"`
}

type entry struct {
	Account      Account `json:"account"`
	RefreshToken string  `json:"refresh_token"`
}

type wireCache struct {
	Version int              `json:"version"`
	Entries map[string]entry `json:"entries"`
}

// Cache is the in-memory form of the token cache. It tracks whether its
// state diverged from the blob it was loaded from, so callers can skip the
// write-back when nothing changed. Not safe for concurrent use; each
// credential instance owns its cache exclusively.
type Cache struct {
	entries map[string]entry
	dirty   bool
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Unmarshal replaces the cache contents with the serialized blob. A nil or
// empty blob yields an empty cache. Loading resets the dirty flag.
func (c *Cache) Unmarshal(data []byte) error {
	c.entries = make(map[string]entry)
	c.dirty = false
	if len(data) == 0 {
		return nil
	}
	var wire wireCache
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to decode token cache: %w", err)
	}
	if wire.Version != wireVersion {
		return fmt.Errorf("unsupported token cache version %d", wire.Version)
	}
	if wire.Entries != nil {
		c.entries = wire.Entries
	}
	return nil
}

// Marshal serializes the cache to its wire form.
func (c *Cache) Marshal() ([]byte, error) {
	return json.Marshal(wireCache{Version: wireVersion, Entries: c.entries})
}

// HasChanged reports whether the cache state diverged from what was loaded.
func (c *Cache) HasChanged() bool {
	return c.dirty
}

// Accounts lists the cached accounts, ordered by username.
func (c *Cache) Accounts() []Account {
	accounts := make([]Account, 0, len(c.entries))
	for _, e := range c.entries {
		accounts = append(accounts, e.Account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts
}

// RefreshToken returns the refresh token for the given account username.
func (c *Cache) RefreshToken(username string) (string, bool) {
	e, ok := c.entries[username]
	if !ok {
		return "", false
	}
	return e.RefreshToken, true
}

// Put records refresh material for an account. The dirty flag is only set
// when the stored state actually changes.
func (c *Cache) Put(account Account, refreshToken string) {
	existing, ok := c.entries[account.Username]
	if ok && existing.Account == account && existing.RefreshToken == refreshToken {
		return
	}
	c.entries[account.Username] = entry{Account: account, RefreshToken: refreshToken}
	c.dirty = true
}

// Remove deletes an account's refresh material.
func (c *Cache) Remove(username string) {
	if _, ok := c.entries[username]; !ok {
		return
	}
	delete(c.entries, username)
	c.dirty = true
}

// Len reports the number of cached accounts.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Select picks the account silent acquisition should use. With a hint the
// account must match it exactly; a hinted account that is not cached simply
// means no silent candidate. Without a hint a single cached account is
// unambiguous, while several cached accounts is an error rather than an
// arbitrary pick.
func (c *Cache) Select(hint string) (Account, bool, error) {
	if hint != "" {
		e, ok := c.entries[hint]
		if !ok {
			return Account{}, false, nil
		}
		return e.Account, true, nil
	}
	switch len(c.entries) {
	case 0:
		return Account{}, false, nil
	case 1:
		for _, e := range c.entries {
			return e.Account, true, nil
		}
	}
	return Account{}, false, osduauth.ErrAmbiguousAccount
}
