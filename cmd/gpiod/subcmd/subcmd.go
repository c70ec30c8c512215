// Support sub-commands in gpiod application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

type Mod struct {
	Name  string
	Usage string
	Main  func(ctx context.Context, config *config.Config, args []string) error
}

// Stdout is where commands print results; logs go to stderr.
var Stdout io.Writer = os.Stdout

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log2.NewStderr(log2.LError).Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}

// NewFlagSet reports parse errors instead of exiting, usage goes to stderr.
func NewFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: gpiod %s %s\n", name, usage)
		fs.SetOutput(os.Stderr)
		fs.PrintDefaults()
		fs.SetOutput(ioutil.Discard)
	}
	return fs
}

// ParseOffsets reads line offsets, at most gpio.MaxValues.
func ParseOffsets(args []string) ([]uint32, error) {
	if len(args) == 0 {
		return nil, errors.NotValidf("no line offsets")
	}
	if len(args) > gpio.MaxValues {
		return nil, errors.NotValidf("too many lines=%d max=%d", len(args), gpio.MaxValues)
	}
	offsets := make([]uint32, len(args))
	for i, s := range args {
		x, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, errors.NotValidf("line offset=%q", s)
		}
		offsets[i] = uint32(x)
	}
	return offsets, nil
}

// ParseAssignments reads offset=value pairs, value is 0/1 or low/high.
func ParseAssignments(args []string) ([]uint32, []bool, error) {
	if len(args) == 0 {
		return nil, nil, errors.NotValidf("no line assignments")
	}
	offsets := make([]string, len(args))
	values := make([]bool, len(args))
	for i, a := range args {
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 {
			return nil, nil, errors.NotValidf("assignment=%q (expected offset=value)", a)
		}
		offsets[i] = parts[0]
		switch strings.ToLower(parts[1]) {
		case "1", "high", "on", "true":
			values[i] = true
		case "0", "low", "off", "false":
		default:
			return nil, nil, errors.NotValidf("value=%q in %q", parts[1], a)
		}
	}
	result, err := ParseOffsets(offsets)
	if err != nil {
		return nil, nil, err
	}
	return result, values, nil
}

// FormatValues prints each level as "1 " or "0 ", same as gpioget.
func FormatValues(values []bool) string {
	var b strings.Builder
	for _, v := range values {
		if v {
			b.WriteString("1 ")
		} else {
			b.WriteString("0 ")
		}
	}
	return b.String()
}

func FormatEvent(e gpio.Event) string {
	sec := e.Time / 1e9
	nsec := e.Time % 1e9
	return fmt.Sprintf("event: %s offset: %d timestamp: [%5d.%09d]",
		strings.ToUpper(e.Edge.String()), e.Offset, int64(sec), int64(nsec))
}

// OpenChip opens chip by name or path using config directories.
func OpenChip(ctx context.Context, c *config.Config, name string) (*gpio.Chip, error) {
	chip, err := c.GPIO().Open(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "open chip %s", name)
	}
	c.Log().Debugf("chip %s", chip)
	return chip, nil
}
