// Command polyredeem redeems resolved Polymarket positions through the
// gasless builder relayer. Wallet and API credentials are kept in an
// encrypted vault that is unlocked with a password at run time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/polyredeem/internal/app"
	"github.com/alanyoungcy/polyredeem/internal/config"
	"github.com/awnumar/memguard"
	"github.com/urfave/cli/v2"
)

// passwordEnv lets unattended runs supply the vault password.
const passwordEnv = "REDEEM_PASSWORD"

func main() {
	defer memguard.Purge()
	cli.OsExiter = memguard.SafeExit

	cliApp := cli.NewApp()
	cliApp.Name = "polyredeem"
	cliApp.Usage = "Redeem resolved Polymarket positions without paying gas"
	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to the TOML configuration file",
			Value: "polyredeem.toml",
		},
	}
	cliApp.Commands = []*cli.Command{
		&setupCmd,
		&resetCmd,
		&statusCmd,
		&checkCmd,
		&redeemCmd,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fatal(err)
	}
}

// loadApp reads and validates the configuration and builds the logger and
// application from it.
func loadApp(c *cli.Context) (*app.App, *slog.Logger, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Debug("configuration loaded",
		slog.String("path", path),
		slog.Any("config", config.RedactedConfig(cfg)),
	)

	return app.New(cfg, logger), logger, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fatal(err error) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "cancelled")
	} else {
		fmt.Fprintf(os.Stderr, "[polyredeem] %v\n", err)
	}
	memguard.SafeExit(1)
}
