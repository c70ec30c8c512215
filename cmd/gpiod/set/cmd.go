package set

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
)

const (
	modName = "set"
	usage   = "[-drive push-pull] [-active high] [-bias as-is] [-consumer gpioset] [-hold 0] chip offset=value..."
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

func Main(ctx context.Context, c *config.Config, args []string) error {
	active, bias, err := c.Set.Parse()
	if err != nil {
		return errors.Annotate(err, modName)
	}
	var drive gpio.Drive
	if err = drive.Set(c.Set.Drive); err != nil {
		return errors.Annotate(err, modName)
	}
	fs := subcmd.NewFlagSet(modName, usage)
	fs.Var(&drive, "drive", "push-pull|open-drain|open-source")
	fs.Var(&bias, "bias", "as-is|disable|pull-up|pull-down")
	fs.Var(&active, "active", "high|low")
	consumer := fs.String("consumer", c.Set.Consumer, "consumer label")
	hold := fs.Duration("hold", 0, "keep lines requested for duration before release, negative waits for signal")
	if err = fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return errors.NotValidf("%s: chip and assignments", modName)
	}
	offsets, values, err := subcmd.ParseAssignments(fs.Args()[1:])
	if err != nil {
		return errors.Annotate(err, modName)
	}
	opts, err := gpio.Output(offsets...)
	if err != nil {
		return errors.Annotate(err, modName)
	}
	opts = opts.Values(values).Drive(drive).Active(active).Bias(bias).Consumer(*consumer)

	chip, err := subcmd.OpenChip(ctx, c, fs.Arg(0))
	if err != nil {
		return err
	}
	defer chip.Close()
	lines, err := chip.RequestOutput(ctx, opts)
	if err != nil {
		return errors.Annotate(err, modName)
	}
	defer lines.Close()
	c.Log().Debugf("%s: %s", modName, lines.Info())

	Hold(ctx, *hold)
	return nil
}

// Hold returns after d, on signal when d is negative, immediately when zero.
func Hold(ctx context.Context, d time.Duration) {
	if d == 0 {
		return
	}
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)
	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case <-ctx.Done():
	case <-signalCh:
	case <-timeout:
	}
}
