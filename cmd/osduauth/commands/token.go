package commands

import "fmt"

type TokenCmd struct {
	credentialFlags
	Device bool `help:"Use the device-code flow if consent is needed." short:"d"`
}

func (c *TokenCmd) Run(ctx *cliCtx) error {
	cred, closer, err := c.setupCredential(ctx, c.Device)
	if err != nil {
		return err
	}
	defer closer()

	token, err := cred.Token(ctx)
	if err != nil {
		return fmt.Errorf("token acquisition failed: %w", err)
	}

	// The bare token on stdout so it can be piped into curl and friends.
	fmt.Println(token)
	return nil
}
