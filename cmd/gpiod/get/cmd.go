package get

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
)

const (
	modName = "get"
	usage   = "[-bias disable] [-active high] [-consumer gpioget] chip offset..."
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

// readValues is replaced in tests.
var readValues = Get

func Main(ctx context.Context, c *config.Config, args []string) error {
	active, bias, err := c.Get.Parse()
	if err != nil {
		return errors.Annotate(err, modName)
	}
	fs := subcmd.NewFlagSet(modName, usage)
	fs.Var(&bias, "bias", "as-is|disable|pull-up|pull-down")
	fs.Var(&active, "active", "high|low")
	consumer := fs.String("consumer", c.Get.Consumer, "consumer label")
	if err = fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return errors.NotValidf("%s: chip and offsets", modName)
	}
	offsets, err := subcmd.ParseOffsets(fs.Args()[1:])
	if err != nil {
		return errors.Annotate(err, modName)
	}

	values, err := readValues(ctx, c, fs.Arg(0), offsets, active, bias, *consumer)
	if err != nil {
		return err
	}
	fmt.Fprintln(subcmd.Stdout, subcmd.FormatValues(values))
	return nil
}

// Get requests offsets as input, reads once and releases them.
func Get(ctx context.Context, c *config.Config, chipName string, offsets []uint32, active gpio.Active, bias gpio.Bias, consumer string) ([]bool, error) {
	opts, err := gpio.Input(offsets...)
	if err != nil {
		return nil, errors.Annotate(err, modName)
	}
	chip, err := subcmd.OpenChip(ctx, c, chipName)
	if err != nil {
		return nil, err
	}
	defer chip.Close()

	lines, err := chip.RequestInput(ctx, opts.Active(active).Bias(bias).Consumer(consumer))
	if err != nil {
		return nil, errors.Annotate(err, modName)
	}
	defer lines.Close()
	values, err := lines.GetValues(ctx, nil)
	return values, errors.Annotate(err, modName)
}
