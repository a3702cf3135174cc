package identity

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/subsealabs/osduauth"
)

// DeviceCodeCredential acquires tokens through the device-code flow: the
// verification URL and user code are printed to the configured output and
// the credential polls the authority until the user completes sign-in on
// another device.
type DeviceCodeCredential struct {
	baseCredential
}

var _ osduauth.Credential = (*DeviceCodeCredential)(nil)

// NewDeviceCode builds a device-code credential from cfg.
func NewDeviceCode(cfg Config) (*DeviceCodeCredential, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cred := &DeviceCodeCredential{}
	cred.cfg = cfg
	cred.flow = &deviceFlow{cfg: &cred.cfg}
	return cred, nil
}

type deviceFlow struct {
	cfg *Config
}

func (f *deviceFlow) authenticate(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	resp, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start device code flow: %w", authErrorFrom(err))
	}
	// A response without a user code cannot be completed; stop here instead
	// of polling for a token that will never be issued.
	if resp.UserCode == "" {
		return nil, &osduauth.AuthError{
			Code:        "invalid_device_authorization",
			Description: "device authorization response contained no user code",
		}
	}

	fmt.Fprintf(f.cfg.output(), "To sign in, visit %s and enter the code %s\n",
		resp.VerificationURI, resp.UserCode)

	tok, err := conf.DeviceAccessToken(ctx, resp)
	if err != nil {
		return nil, authErrorFrom(err)
	}
	return tok, nil
}
