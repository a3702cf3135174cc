package commands

import (
	"fmt"

	"github.com/subsealabs/osduauth/pkg/identity"
)

type ExchangeCmd struct {
	credentialFlags
	Device       bool   `help:"Use the device-code flow if consent is needed." short:"d"`
	ClientSecret string `help:"Client secret of the middle-tier application." env:"OSDU_CLIENT_SECRET" required:""`
	Resource     string `help:"Identifier of the downstream resource to impersonate against." env:"OSDU_RESOURCE_ID" required:""`
}

func (c *ExchangeCmd) Run(ctx *cliCtx) error {
	source, closer, err := c.setupCredential(ctx, c.Device)
	if err != nil {
		return err
	}
	defer closer()

	obo, err := identity.NewOnBehalfOf(identity.OnBehalfOfConfig{
		Source:       source,
		ClientSecret: c.ClientSecret,
		Resource:     c.Resource,
		Logger:       ctx.Logger,
	})
	if err != nil {
		return err
	}

	ctx.Logger.Info("exchanging token on behalf of the signed-in user",
		"resource", c.Resource, "scope", obo.UserImpersonationScope())

	token, err := obo.Token(ctx)
	if err != nil {
		return fmt.Errorf("on-behalf-of exchange failed: %w", err)
	}

	fmt.Println(token)
	return nil
}
