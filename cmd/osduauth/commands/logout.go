package commands

import "fmt"

type LogoutCmd struct {
	credentialFlags
}

func (c *LogoutCmd) Run(ctx *cliCtx) error {
	store, closer, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := store.Delete(); err != nil {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	ctx.Logger.Info("token cache removed", "backend", c.CacheBackend)
	fmt.Println("Signed out.")
	return nil
}
