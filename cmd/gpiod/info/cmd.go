package info

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
)

const (
	modName = "info"
	usage   = "[chip...]"
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

// Main prints chip header and every line of given chips, all chips without arguments.
func Main(ctx context.Context, c *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, usage)
	if err := fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	names := fs.Args()
	if len(names) == 0 {
		var err error
		if names, err = c.GPIO().ListDevices(); err != nil {
			return errors.Annotate(err, modName)
		}
	}
	for _, name := range names {
		chip, err := subcmd.OpenChip(ctx, c, name)
		if err != nil {
			return err
		}
		err = PrintChip(ctx, chip)
		_ = chip.Close()
		if err != nil {
			return errors.Annotate(err, modName)
		}
	}
	return nil
}

func PrintChip(ctx context.Context, chip *gpio.Chip) error {
	ci := chip.Info()
	fmt.Fprintf(subcmd.Stdout, "%s - %d lines:\n", ci.Name, ci.Lines)
	for offset := uint32(0); offset < ci.Lines; offset++ {
		li, err := chip.LineInfo(ctx, offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(subcmd.Stdout, "\t%s\n", li)
	}
	return nil
}
