package main

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyredeem/internal/app"
	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/urfave/cli/v2"
)

var setupCmd = cli.Command{
	Name:  "setup",
	Usage: "encrypt and store wallet and builder API credentials",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite existing credentials",
		},
	},
	Action: setupAction,
}

var resetCmd = cli.Command{
	Name:   "reset",
	Usage:  "delete the stored credentials",
	Action: resetAction,
}

var statusCmd = cli.Command{
	Name:   "status",
	Usage:  "report whether credentials are stored",
	Action: statusAction,
}

func setupAction(c *cli.Context) error {
	a, _, err := loadApp(c)
	if err != nil {
		return err
	}
	vault := a.Vault()
	if vault.IsInitialized() && !c.Bool("force") {
		return fmt.Errorf("credentials already stored at %s: run 'reset' or pass --force", vault.Path())
	}

	var bundle domain.CredentialBundle
	steps := []struct {
		label  string
		masked bool
		dst    *string
	}{
		{"Wallet private key (hex)", true, &bundle.SigningKey},
		{"Proxy wallet address", false, &bundle.ProxyAddress},
		{"Builder API key", false, &bundle.APIKey},
		{"Builder API secret", true, &bundle.APISecret},
		{"Builder API passphrase", true, &bundle.APIPassphrase},
	}
	for _, s := range steps {
		v, err := promptLine(s.label, s.masked)
		if err != nil {
			return err
		}
		*s.dst = v
	}
	bundle.SigningKey = strings.TrimPrefix(bundle.SigningKey, "0x")
	if err := bundle.Validate(); err != nil {
		return err
	}

	password, err := promptNewPassword()
	if err != nil {
		return err
	}
	if err := vault.Setup(bundle, password); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Credentials encrypted and saved to %s\n", vault.Path())
	return nil
}

func resetAction(c *cli.Context) error {
	a, _, err := loadApp(c)
	if err != nil {
		return err
	}
	removed, err := a.Vault().Reset()
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("No stored credentials to remove")
		return nil
	}
	fmt.Println("Stored credentials removed")
	return nil
}

func statusAction(c *cli.Context) error {
	a, _, err := loadApp(c)
	if err != nil {
		return err
	}
	if a.Vault().IsInitialized() {
		fmt.Printf("Credentials stored at %s\n", a.Vault().Path())
		return nil
	}
	fmt.Println("Credentials not configured: run 'polyredeem setup'")
	return cli.Exit("", 1)
}

// ensureVault fails before any prompt when setup has not run.
func ensureVault(a *app.App) error {
	if !a.Vault().IsInitialized() {
		return fmt.Errorf("%w: run 'polyredeem setup' first", domain.ErrVaultNotInitialized)
	}
	return nil
}
