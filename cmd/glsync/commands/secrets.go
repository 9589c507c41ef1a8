package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mscno/glsync/pkg/registry"
	"github.com/mscno/glsync/pkg/secrets"
)

var errEmptySecret = errors.New("secret value is empty")

type SecretsCmd struct {
	Set    SecretsSetCmd    `cmd:"" help:"Store a secret in the OS keyring"`
	Delete SecretsDeleteCmd `cmd:"" help:"Remove a secret from the OS keyring"`
}

type SecretsSetCmd struct {
	Name  string `arg:"" enum:"access-token,eclipse-oauth-config" help:"Secret name (access-token or eclipse-oauth-config)"`
	Value string `arg:"" optional:"" help:"Secret value; read from stdin when omitted"`
}

func (c *SecretsSetCmd) Run(ctx *cliCtx) error {
	value := c.Value
	if value == "" {
		data, err := io.ReadAll(ctx.Stdin)
		if err != nil {
			return fmt.Errorf("reading secret from stdin: %w", err)
		}
		value = string(data)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return errEmptySecret
	}
	if c.Name == secrets.OAuthConfig {
		if _, err := registry.ParseOAuthConfig([]byte(value)); err != nil {
			return err
		}
	}
	if err := ctx.Keyring.Set(c.Name, value); err != nil {
		return err
	}
	ctx.Logger.Info("stored secret in keyring", "name", c.Name)
	return nil
}

type SecretsDeleteCmd struct {
	Name string `arg:"" enum:"access-token,eclipse-oauth-config" help:"Secret name (access-token or eclipse-oauth-config)"`
}

func (c *SecretsDeleteCmd) Run(ctx *cliCtx) error {
	err := ctx.Keyring.Delete(c.Name)
	if errors.Is(err, secrets.ErrNotFound) {
		ctx.Logger.Warn("secret was not in keyring", "name", c.Name)
		return nil
	}
	if err != nil {
		return err
	}
	ctx.Logger.Info("deleted secret from keyring", "name", c.Name)
	return nil
}
