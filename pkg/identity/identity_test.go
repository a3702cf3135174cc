package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/go-michi/michi"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/subsealabs/osduauth"
	"github.com/subsealabs/osduauth/pkg/tokencache"
)

// testIDToken builds a signed JWT carrying a preferred_username claim. The
// credential never verifies signatures, any key will do.
func testIDToken(t *testing.T, username string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"preferred_username": username,
		"exp":                time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func newAuthority(t *testing.T, tokenHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	router := michi.NewRouter()
	router.HandleFunc("/oauth2/token", tokenHandler)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func writeTokenJSON(w http.ResponseWriter, accessToken, refreshToken, idToken string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  accessToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": refreshToken,
		"id_token":      idToken,
	})
}

// countingFlow satisfies consentFlow and records how often the consent flow
// was entered.
type countingFlow struct {
	calls int32
	token *oauth2.Token
	err   error
}

func (f *countingFlow) authenticate(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.token, f.err
}

// countingStore wraps a Store and records writes.
type countingStore struct {
	tokencache.Store
	saves int32
}

func (s *countingStore) Save(data []byte) error {
	atomic.AddInt32(&s.saves, 1)
	return s.Store.Save(data)
}

func newTestCredential(cfg Config, flow consentFlow) *DeviceCodeCredential {
	cred := &DeviceCodeCredential{}
	cred.cfg = cfg
	cred.flow = flow
	return cred
}

func TestToken_RefreshesOnEveryCall(t *testing.T) {
	flow := &countingFlow{token: &oauth2.Token{AccessToken: "at-1"}}
	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: "https://login.example.com/tenant",
	}, flow)

	for i := 0; i < 2; i++ {
		tok, err := cred.Token(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "at-1", tok)
	}
	// Without persisted refresh material, every call must re-enter the
	// consent flow; there is no in-process token reuse.
	assert.Equal(t, int32(2), atomic.LoadInt32(&flow.calls))
}

func TestAuthenticate_SilentAfterConsent(t *testing.T) {
	var tokenHits int32
	ts := newAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenHits, 1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "refresh_token" {
			http.Error(w, "unexpected grant", http.StatusBadRequest)
			return
		}
		writeTokenJSON(w, "at-silent", r.Form.Get("refresh_token"), "")
	})

	store := &countingStore{Store: tokencache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))}
	flow := &countingFlow{token: (&oauth2.Token{
		AccessToken:  "at-consent",
		RefreshToken: "rt-1",
	}).WithExtra(map[string]any{"id_token": testIDToken(t, "alice@contoso.com")})}

	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: ts.URL,
		Store:     store,
	}, flow)

	// First call: empty cache, consent flow runs, cache is written.
	res, err := cred.Authenticate(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "at-consent", res.AccessToken)
	assert.Equal(t, "alice@contoso.com", res.Username)
	assert.Equal(t, int32(1), atomic.LoadInt32(&flow.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.saves))
	assert.Equal(t, int32(0), atomic.LoadInt32(&tokenHits))

	// Second call: silent acquisition from the cached refresh token, no
	// consent flow, and no write-back since the cache state is unchanged.
	res, err = cred.Authenticate(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "at-silent", res.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&flow.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.saves))
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenHits))
}

func TestAuthenticate_ConsentWhenSilentRejected(t *testing.T) {
	ts := newAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"refresh token revoked","correlation_id":"corr-1"}`)
	})

	cache := tokencache.New()
	cache.Put(tokencache.Account{Username: "alice@contoso.com"}, "rt-stale")
	blob, err := cache.Marshal()
	assert.NoError(t, err)
	store := tokencache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	assert.NoError(t, store.Save(blob))

	flow := &countingFlow{token: &oauth2.Token{AccessToken: "at-consent", RefreshToken: "rt-fresh"}}
	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: ts.URL,
		Store:     store,
		LoginHint: "alice@contoso.com",
	}, flow)

	tok, err := cred.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "at-consent", tok)
	// A rejected refresh token falls back to consent exactly once.
	assert.Equal(t, int32(1), atomic.LoadInt32(&flow.calls))
}

func TestAuthenticate_AmbiguousAccounts(t *testing.T) {
	cache := tokencache.New()
	cache.Put(tokencache.Account{Username: "alice@contoso.com"}, "rt-a")
	cache.Put(tokencache.Account{Username: "bob@contoso.com"}, "rt-b")
	blob, err := cache.Marshal()
	assert.NoError(t, err)
	store := tokencache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	assert.NoError(t, store.Save(blob))

	flow := &countingFlow{token: &oauth2.Token{AccessToken: "at"}}
	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: "https://login.example.com/tenant",
		Store:     store,
	}, flow)

	_, err = cred.Token(context.Background())
	assert.IsError(t, err, osduauth.ErrAmbiguousAccount)
	assert.Equal(t, int32(0), atomic.LoadInt32(&flow.calls))

	// A login hint resolves the ambiguity.
	hits := int32(0)
	ts := newAuthority(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_ = r.ParseForm()
		if r.Form.Get("refresh_token") != "rt-b" {
			http.Error(w, "wrong account selected", http.StatusBadRequest)
			return
		}
		writeTokenJSON(w, "at-bob", "rt-b", "")
	})
	cred = newTestCredential(Config{
		ClientID:  "client",
		Authority: ts.URL,
		Store:     store,
		LoginHint: "bob@contoso.com",
	}, flow)

	tok, err := cred.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "at-bob", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestAuthenticate_NoAccessToken(t *testing.T) {
	flow := &countingFlow{token: &oauth2.Token{}}
	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: "https://login.example.com/tenant",
	}, flow)

	_, err := cred.Token(context.Background())
	assert.IsError(t, err, osduauth.ErrNoAccessToken)
}

func TestAuthenticate_UnreadableCacheStartsFresh(t *testing.T) {
	store := tokencache.NewFileStore(filepath.Join(t.TempDir(), "cache.json"))
	assert.NoError(t, store.Save([]byte("not json")))

	flow := &countingFlow{token: &oauth2.Token{AccessToken: "at"}}
	cred := newTestCredential(Config{
		ClientID:  "client",
		Authority: "https://login.example.com/tenant",
		Store:     store,
	}, flow)

	tok, err := cred.Token(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "at", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&flow.calls))
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewDeviceCode(Config{Authority: "https://login.example.com"})
	assert.Error(t, err)
	_, err = NewDeviceCode(Config{ClientID: "client"})
	assert.Error(t, err)
	_, err = NewInteractiveBrowser(Config{})
	assert.Error(t, err)
}

func errorAs[T error](err error, target *T) bool {
	return errors.As(err, target)
}

// syncBuffer is a goroutine-safe bytes.Buffer for capturing flow output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
