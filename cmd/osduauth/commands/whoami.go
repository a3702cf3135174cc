package commands

import (
	"fmt"
	"time"

	"github.com/subsealabs/osduauth"
)

type WhoamiCmd struct {
	credentialFlags
	Device bool `help:"Use the device-code flow if consent is needed." short:"d"`
}

func (c *WhoamiCmd) Run(ctx *cliCtx) error {
	cred, closer, err := c.setupCredential(ctx, c.Device)
	if err != nil {
		return err
	}
	defer closer()

	res, err := cred.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	fmt.Printf("Account Info:\n")
	if res.Username != "" {
		fmt.Printf("  Username: %s\n", res.Username)
	}
	if !res.Expiry.IsZero() {
		fmt.Printf("  Token expires: %s\n", res.Expiry.Format(time.RFC3339))
	}

	claims, err := osduauth.ParseClaims(res.AccessToken)
	if err != nil {
		// Opaque access tokens are valid; there is just nothing to show.
		ctx.Logger.Debug("access token is not a JWT", "error", err)
		return nil
	}
	for _, key := range []string{"name", "oid", "tid", "aud"} {
		if val, ok := claims[key].(string); ok && val != "" {
			fmt.Printf("  %s: %s\n", key, val)
		}
	}
	return nil
}
