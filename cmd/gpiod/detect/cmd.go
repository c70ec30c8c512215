package detect

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/internal/config"
)

const (
	modName = "detect"
	usage   = ""
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

// Main prints one line per GPIO chip, chips that fail to open are logged and skipped.
func Main(ctx context.Context, c *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, usage)
	if err := fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	paths, err := c.GPIO().ListDevices()
	if err != nil {
		return errors.Annotate(err, modName)
	}
	for _, path := range paths {
		chip, err := c.GPIO().Open(ctx, path)
		if err != nil {
			c.Log().Errorf("%s: %s", modName, err)
			continue
		}
		fmt.Fprintln(subcmd.Stdout, chip.String())
		_ = chip.Close()
	}
	return nil
}
