package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/alanyoungcy/polyredeem/internal/notify"
	"github.com/urfave/cli/v2"
)

var checkCmd = cli.Command{
	Name:   "check",
	Usage:  "list redeemable positions without redeeming",
	Action: checkAction,
}

var redeemCmd = cli.Command{
	Name:   "redeem",
	Usage:  "redeem all resolved positions once, or on a schedule",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "interval",
			Usage: "repeat every MINUTES (at least 1); overrides redeem.interval",
		},
	},
	Action: redeemAction,
}

func checkAction(c *cli.Context) error {
	a, _, err := loadApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := ensureVault(a); err != nil {
		return err
	}
	password, err := readPassword()
	if err != nil {
		return err
	}
	summary, err := a.Check(c.Context, password)
	if err != nil {
		return err
	}
	printSummary(summary)
	return exitFor(summary)
}

func redeemAction(c *cli.Context) error {
	a, _, err := loadApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	if c.IsSet("interval") {
		minutes := c.Int("interval")
		if minutes < 1 {
			return errors.New("interval must be at least 1 minute")
		}
		a.SetInterval(time.Duration(minutes) * time.Minute)
	}

	if err := ensureVault(a); err != nil {
		return err
	}
	password, err := readPassword()
	if err != nil {
		return err
	}

	if a.Interval() > 0 {
		return a.RedeemEvery(c.Context, password)
	}

	summary, err := a.Redeem(c.Context, password)
	if err != nil {
		return err
	}
	printSummary(summary)
	return exitFor(summary)
}

func printSummary(s domain.RunSummary) {
	fmt.Println()
	fmt.Println(notify.FormatSummary(s))
	if failed := s.Failed(); len(failed) > 0 {
		fmt.Println()
		fmt.Println("Failures:")
		fmt.Println(notify.FormatFailures(failed))
	}
}

func exitFor(s domain.RunSummary) error {
	if s.ExitOK() {
		return nil
	}
	return cli.Exit("", 1)
}
