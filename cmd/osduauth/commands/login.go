package commands

import "fmt"

type LoginCmd struct {
	credentialFlags
	Device bool `help:"Use the device-code flow instead of a browser." short:"d"`
}

func (c *LoginCmd) Run(ctx *cliCtx) error {
	cred, closer, err := c.setupCredential(ctx, c.Device)
	if err != nil {
		return err
	}
	defer closer()

	if c.Device {
		ctx.Logger.Info("starting device-code sign-in", "authority", c.Authority)
	} else {
		ctx.Logger.Info("starting interactive sign-in", "authority", c.Authority)
	}

	res, err := cred.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	if res.Username != "" {
		fmt.Printf("Signed in as %s\n", res.Username)
	} else {
		fmt.Println("Signed in.")
	}
	return nil
}
