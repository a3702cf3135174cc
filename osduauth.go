// Package osduauth provides credentials for acquiring OAuth2 bearer tokens
// from an OSDU platform's identity authority. Concrete credential
// implementations live in pkg/identity; this package defines the contract
// they share and the types callers consume.
package osduauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credential is the capability every token-acquiring adapter exposes.
// Token blocks until a bearer token is available or the flow fails; it may
// take seconds to minutes when user interaction is required. The returned
// string is used verbatim as an "Authorization: Bearer" header value.
type Credential interface {
	Token(ctx context.Context) (string, error)
}

// ErrNoAccessToken is returned when an authority response was otherwise
// well-formed but carried no access token.
var ErrNoAccessToken = errors.New("authority response contained no access token")

// ErrAmbiguousAccount is returned when the token cache holds more than one
// account and no login hint was configured to disambiguate them.
var ErrAmbiguousAccount = errors.New("multiple accounts in token cache, set a login hint to select one")

// Result is the outcome of a successful token acquisition.
type Result struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	// IDToken is the raw OIDC ID token, when the authority issued one.
	IDToken string
	// Username is the preferred_username claim from the ID token, if present.
	Username string
}

// AuthError is a typed failure from the authority's token or authorization
// endpoints. The field names follow the wire form of an OAuth2 error body.
type AuthError struct {
	Code          string `json:"error"`
	Description   string `json:"error_description"`
	CorrelationID string `json:"correlation_id"`

	// StatusCode is the HTTP status of the failing response, 0 when the
	// failure did not come from an HTTP exchange.
	StatusCode int `json:"-"`
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("authentication failed")
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	if e.CorrelationID != "" {
		fmt.Fprintf(&b, " (correlation_id=%s)", e.CorrelationID)
	}
	return b.String()
}

// Endpoints maps an authority base URL to its OAuth2 endpoints. The layout
// matches the AAD v1 endpoints OSDU deployments expose: authorization,
// token and device-code endpoints all live under {authority}/oauth2.
func Endpoints(authority string) oauth2.Endpoint {
	authority = strings.TrimRight(authority, "/")
	return oauth2.Endpoint{
		AuthURL:       authority + "/oauth2/authorize",
		TokenURL:      authority + "/oauth2/token",
		DeviceAuthURL: authority + "/oauth2/devicecode",
	}
}
