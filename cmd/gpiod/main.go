package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/temoto/gpiod/cmd/gpiod/detect"
	"github.com/temoto/gpiod/cmd/gpiod/get"
	"github.com/temoto/gpiod/cmd/gpiod/info"
	"github.com/temoto/gpiod/cmd/gpiod/mon"
	"github.com/temoto/gpiod/cmd/gpiod/set"
	"github.com/temoto/gpiod/cmd/gpiod/shell"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

var log = log2.NewStderr(log2.LInfo)

var modules = []subcmd.Mod{
	detect.Mod,
	info.Mod,
	get.Mod,
	set.Mod,
	mon.Mod,
	shell.Mod,
}

func main() {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagConfig := flags.String("config", "", "hcl config file, empty means built-in defaults")
	flagDebug := flags.Bool("debug", false, "debug log and error stack traces")
	flags.Usage = func() {
		names := make([]string, len(modules))
		for i, m := range modules {
			names[i] = m.Name
		}
		fmt.Fprintf(flags.Output(), "usage: %s [flags] {%s} [args]\n", os.Args[0], strings.Join(names, "|"))
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if subcmd.SdNotify("STATUS=start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	}
	if *flagDebug {
		log.SetLevel(log2.LDebug)
	}

	mod, err := subcmd.Parse(flags.Arg(0), modules)
	if err != nil {
		log.Error(err)
		flags.Usage()
		os.Exit(2)
	}

	var c *config.Config
	if *flagConfig == "" {
		c = config.MustReadConfig(strings.NewReader(""), log)
	} else {
		c = config.MustReadConfigFile(*flagConfig, log)
	}
	log.Debugf("config=%+v", c)

	ctx := context.Background()
	ctx = log2.ContextWithLogger(ctx, log)

	if err = mod.Main(ctx, c, flags.Args()[1:]); err != nil {
		if log.Enabled(log2.LDebug) {
			log.Fatal(errors.ErrorStack(err))
		}
		log.Fatal(err)
	}
}
