// Package identity implements the credential adapters: interactive browser
// sign-in, device-code sign-in and on-behalf-of exchange. The two
// user-facing variants share one refresh path over a persisted token cache;
// they differ only in how consent is obtained.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/subsealabs/osduauth"
	"github.com/subsealabs/osduauth/pkg/tokencache"
)

// DefaultInteractiveTimeout bounds how long an interactive sign-in may wait
// for the user to complete consent in the browser.
const DefaultInteractiveTimeout = 5 * time.Minute

// Config describes a credential. It is copied at construction time and not
// consulted for changes afterwards.
type Config struct {
	// ClientID is the OAuth client (application) ID. Required.
	ClientID string
	// Authority is the base URL of the identity provider's token-issuing
	// endpoint, e.g. https://login.microsoftonline.com/{tenant}. Required.
	Authority string
	// Scopes to request.
	Scopes []string
	// Store persists the token cache between runs. With a nil store the
	// cache lives only for the lifetime of the credential.
	Store tokencache.Store
	// LoginHint selects the cached account to use for silent acquisition.
	// Without a hint, a cache holding several accounts is an error.
	LoginHint string
	// Timeout bounds the interactive consent flow.
	// Defaults to DefaultInteractiveTimeout.
	Timeout time.Duration
	// CallbackPort fixes the port of the local callback server for the
	// browser flow; 0 picks a free port.
	CallbackPort int
	// SkipBrowser prints the authorization URL instead of opening a browser.
	SkipBrowser bool
	// Output receives user-facing flow instructions. Defaults to os.Stdout.
	Output io.Writer
	// HTTPClient overrides the client used for token endpoint calls.
	HTTPClient *http.Client
	// Logger for diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if c.Authority == "" {
		return errors.New("authority URL is required")
	}
	return nil
}

func (c *Config) output() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultInteractiveTimeout
}

// consentFlow is the one capability a credential variant must provide: block
// until the user has granted consent and a token was issued.
type consentFlow interface {
	authenticate(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error)
}

// baseCredential carries the shared refresh path: load the cache, try silent
// acquisition, fall back to the variant's consent flow, persist the cache if
// it changed.
type baseCredential struct {
	cfg  Config
	flow consentFlow

	mu sync.Mutex
}

// ClientID returns the configured OAuth client ID.
func (b *baseCredential) ClientID() string { return b.cfg.ClientID }

// Authority returns the configured authority base URL without a trailing slash.
func (b *baseCredential) Authority() string { return strings.TrimRight(b.cfg.Authority, "/") }

// Token acquires a bearer token. Every call re-enters the refresh path;
// validity of a previously issued token is the authority's call, not ours.
func (b *baseCredential) Token(ctx context.Context) (string, error) {
	res, err := b.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

// Authenticate runs the full refresh flow and returns the token details.
func (b *baseCredential) Authenticate(ctx context.Context) (*osduauth.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cache := tokencache.New()
	if b.cfg.Store != nil {
		blob, err := b.cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load token cache: %w", err)
		}
		if err := cache.Unmarshal(blob); err != nil {
			// An unreadable cache only costs the user a new sign-in.
			b.cfg.logger().Warn("discarding unreadable token cache", "error", err)
		}
	}

	conf := &oauth2.Config{
		ClientID: b.cfg.ClientID,
		Endpoint: osduauth.Endpoints(b.cfg.Authority),
		Scopes:   b.cfg.Scopes,
	}
	if b.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.cfg.HTTPClient)
	}

	tok, silentAccount, err := b.silent(ctx, conf, cache)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		tok, err = b.flow.authenticate(ctx, conf)
		if err != nil {
			return nil, err
		}
	}
	if tok.AccessToken == "" {
		return nil, osduauth.ErrNoAccessToken
	}

	res := resultFromToken(tok)
	if tok.RefreshToken != "" {
		// Silent refreshes update the account they were issued for; consent
		// flows key the material by the identity the authority reported.
		username := silentAccount
		if username == "" {
			username = b.accountName(res)
		}
		cache.Put(tokencache.Account{Username: username}, tok.RefreshToken)
	}
	if b.cfg.Store != nil && cache.HasChanged() {
		blob, err := cache.Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize token cache: %w", err)
		}
		if err := b.cfg.Store.Save(blob); err != nil {
			return nil, fmt.Errorf("failed to persist token cache: %w", err)
		}
	}

	return res, nil
}

// silent attempts acquisition from cached refresh material. A miss or a
// rejected refresh token is not an error, it just means consent is needed;
// only account ambiguity and context cancellation are surfaced.
func (b *baseCredential) silent(ctx context.Context, conf *oauth2.Config, cache *tokencache.Cache) (*oauth2.Token, string, error) {
	account, ok, err := cache.Select(b.cfg.LoginHint)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", nil
	}
	refreshToken, ok := cache.RefreshToken(account.Username)
	if !ok || refreshToken == "" {
		return nil, "", nil
	}

	b.cfg.logger().Debug("attempting silent token acquisition", "account", account.Username)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		b.cfg.logger().Debug("silent acquisition failed, consent flow required",
			"account", account.Username, "error", err)
		return nil, "", nil
	}
	return tok, account.Username, nil
}

func (b *baseCredential) accountName(res *osduauth.Result) string {
	if res.Username != "" {
		return res.Username
	}
	if b.cfg.LoginHint != "" {
		return b.cfg.LoginHint
	}
	return "default"
}

func resultFromToken(tok *oauth2.Token) *osduauth.Result {
	res := &osduauth.Result{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok && idToken != "" {
		res.IDToken = idToken
		res.Username = osduauth.PreferredUsername(idToken)
	}
	if res.Username == "" {
		res.Username = osduauth.PreferredUsername(tok.AccessToken)
	}
	return res
}

// authErrorFrom rewrites an x/oauth2 retrieval failure into a typed
// *osduauth.AuthError, keeping the authority's error code, description and
// correlation id. Other errors pass through unchanged.
func authErrorFrom(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return err
	}
	ae := &osduauth.AuthError{
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
	}
	if re.Response != nil {
		ae.StatusCode = re.Response.StatusCode
	}
	// x/oauth2 only decodes the error body on the token endpoint path;
	// device authorization failures arrive with the raw body only.
	var body osduauth.AuthError
	if json.Unmarshal(re.Body, &body) == nil {
		if ae.Code == "" {
			ae.Code = body.Code
			ae.Description = body.Description
		}
		ae.CorrelationID = body.CorrelationID
	}
	if ae.Code == "" {
		ae.Code = "invalid_response"
		ae.Description = strings.TrimSpace(string(re.Body))
	}
	return ae
}
