package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/subsealabs/osduauth"
)

const (
	jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	onBehalfOfTokenUse = "on_behalf_of"
	onBehalfOfScope    = "openid user_impersonation"
)

// AssertionSource is a credential whose tokens can serve as the assertion in
// an on-behalf-of exchange. The interactive and device-code credentials
// implement it.
type AssertionSource interface {
	osduauth.Credential
	ClientID() string
	Authority() string
}

// OnBehalfOfConfig describes an on-behalf-of exchange.
type OnBehalfOfConfig struct {
	// Source supplies the assertion token; its client id and authority are
	// reused for the exchange. Required.
	Source AssertionSource
	// ClientSecret of the middle-tier application. Required.
	ClientSecret string
	// Resource is the identifier of the downstream service the exchanged
	// token should be scoped to. Required.
	Resource string
	// HTTPClient overrides the client used for the exchange.
	HTTPClient *http.Client
	// Logger for diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// OnBehalfOfCredential exchanges a token from an inner credential for one
// scoped to a downstream resource using the jwt-bearer grant.
type OnBehalfOfCredential struct {
	cfg     OnBehalfOfConfig
	limiter *rate.Limiter
}

var _ osduauth.Credential = (*OnBehalfOfCredential)(nil)

// NewOnBehalfOf builds an on-behalf-of credential from cfg.
func NewOnBehalfOf(cfg OnBehalfOfConfig) (*OnBehalfOfCredential, error) {
	if cfg.Source == nil {
		return nil, errors.New("assertion source credential is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.Resource == "" {
		return nil, errors.New("resource identifier is required")
	}
	return &OnBehalfOfCredential{
		cfg: cfg,
		// Each Token call costs an authority round trip on top of the inner
		// refresh; keep callers from hammering the token endpoint.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}, nil
}

// UserImpersonationScope returns the downstream impersonation scope for the
// configured resource.
func (c *OnBehalfOfCredential) UserImpersonationScope() string {
	return fmt.Sprintf("api://%s/user_impersonation", c.cfg.Resource)
}

// Token obtains an assertion from the source credential and exchanges it at
// {authority}/oauth2/token for a token scoped to the downstream resource.
func (c *OnBehalfOfCredential) Token(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	assertion, err := c.cfg.Source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire assertion token: %w", err)
	}

	form := url.Values{
		"grant_type":          {jwtBearerGrantType},
		"assertion":           {assertion},
		"client_id":           {c.cfg.Source.ClientID()},
		"client_secret":       {c.cfg.ClientSecret},
		"resource":            {c.cfg.Resource},
		"requested_token_use": {onBehalfOfTokenUse},
		"scope":               {onBehalfOfScope},
	}

	endpoint := c.cfg.Source.Authority() + "/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read token exchange response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger().Debug("on-behalf-of exchange rejected", "status", resp.StatusCode)
		ae := &osduauth.AuthError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(body, ae); err != nil || ae.Code == "" {
			ae.Code = "invalid_response"
			ae.Description = strings.TrimSpace(string(body))
		}
		return "", ae
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode token exchange response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("on-behalf-of exchange: %w", osduauth.ErrNoAccessToken)
	}
	return payload.AccessToken, nil
}

func (c *OnBehalfOfCredential) httpClient() *http.Client {
	if c.cfg.HTTPClient != nil {
		return c.cfg.HTTPClient
	}
	return http.DefaultClient
}

func (c *OnBehalfOfCredential) logger() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}
