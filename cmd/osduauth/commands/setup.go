package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/subsealabs/osduauth"
	"github.com/subsealabs/osduauth/pkg/identity"
	"github.com/subsealabs/osduauth/pkg/tokencache"
)

const keyringService = "osduauth"

// credentialFlags are the flags every token-acquiring command shares.
type credentialFlags struct {
	ClientID     string        `help:"OAuth client (application) ID." env:"OSDU_CLIENT_ID" required:"" short:"c"`
	Authority    string        `help:"Authority base URL, e.g. https://login.microsoftonline.com/{tenant}." env:"OSDU_AUTHORITY" required:"" short:"a"`
	Scopes       []string      `help:"Scopes to request." env:"OSDU_SCOPES" short:"s"`
	LoginHint    string        `help:"Account username to select when the cache holds several." env:"OSDU_LOGIN_HINT"`
	CacheBackend string        `help:"Where the token cache lives." enum:"file,bolt,keyring" env:"OSDU_CACHE_BACKEND" default:"file"`
	CachePath    string        `help:"Token cache path (file and bolt backends)." env:"OSDU_TOKEN_CACHE" type:"path" default:"~/.osduauth/tokencache.json"`
	Timeout      time.Duration `help:"Interactive sign-in timeout." default:"5m"`
	NoBrowser    bool          `help:"Print the sign-in URL instead of opening a browser."`
}

// cacheKey scopes shared backends (bolt, keyring) so credentials for
// different applications or authorities never read each other's blobs.
func (f *credentialFlags) cacheKey() string {
	return f.ClientID + "|" + f.Authority
}

// openStore builds the configured token cache store. The returned closer is
// a no-op for backends without an open handle.
func (f *credentialFlags) openStore(ctx *cliCtx) (tokencache.Store, func() error, error) {
	noop := func() error { return nil }
	switch f.CacheBackend {
	case "file":
		return tokencache.NewFileStore(f.CachePath), noop, nil
	case "bolt":
		store, err := tokencache.NewBoltStore(f.CachePath, f.cacheKey())
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "keyring":
		return tokencache.NewKeyringStore(ctx.Keyring, keyringService, f.cacheKey()), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", f.CacheBackend)
}

// credential is what the commands need from the interactive and device-code
// variants: the assertion-source surface plus the full authenticate result.
type credential interface {
	identity.AssertionSource
	Authenticate(ctx context.Context) (*osduauth.Result, error)
}

// setupCredential wires the flags into an interactive or device-code
// credential over the configured cache store.
func (f *credentialFlags) setupCredential(ctx *cliCtx, device bool) (credential, func() error, error) {
	store, closer, err := f.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := identity.Config{
		ClientID:    f.ClientID,
		Authority:   f.Authority,
		Scopes:      f.Scopes,
		Store:       store,
		LoginHint:   f.LoginHint,
		Timeout:     f.Timeout,
		SkipBrowser: f.NoBrowser,
		Logger:      ctx.Logger,
	}

	var cred credential
	if device {
		cred, err = identity.NewDeviceCode(cfg)
	} else {
		cred, err = identity.NewInteractiveBrowser(cfg)
	}
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return cred, closer, nil
}
