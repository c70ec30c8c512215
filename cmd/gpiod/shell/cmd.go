package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/helpers"
	"github.com/temoto/gpiod/helpers/cli"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

const (
	modName = "shell"
	usage   = "chip"
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

var commands = []prompt.Suggest{
	{Text: "get", Description: "get offset... read levels, held output lines are read in place"},
	{Text: "set", Description: "set offset=0|1... drive and hold output lines"},
	{Text: "release", Description: "release [offset...] free held lines, all without arguments"},
	{Text: "info", Description: "info [offset...] line info, all lines without arguments"},
	{Text: "help", Description: "list commands"},
}

type chip interface {
	Info() gpio.ChipInfo
	LineInfo(ctx context.Context, offset uint32) (gpio.LineInfo, error)
	RequestInput(ctx context.Context, opts gpio.InputOptions) (*gpio.InputLines, error)
	RequestOutput(ctx context.Context, opts gpio.OutputOptions) (*gpio.OutputLines, error)
}

// session holds output requests between commands.
type session struct {
	ctx  context.Context
	c    *config.Config
	log  *log2.Log
	chip chip
	out  io.Writer
	held []*gpio.OutputLines
}

func Main(ctx context.Context, c *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, usage)
	if err := fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.NotValidf("%s: chip", modName)
	}
	ch, err := subcmd.OpenChip(ctx, c, fs.Arg(0))
	if err != nil {
		return err
	}
	defer ch.Close()

	s := &session{ctx: ctx, c: c, log: c.Log(), chip: ch, out: subcmd.Stdout}
	onSignal := func() {
		_ = s.releaseAll()
		_ = ch.Close()
	}
	err = cli.MainLoop(modName, os.Stdin, s.exec, complete, onSignal)
	return helpers.FoldErrors([]error{err, s.releaseAll()})
}

func complete(d prompt.Document) []prompt.Suggest {
	if strings.ContainsRune(d.TextBeforeCursor(), ' ') {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (s *session) exec(line string) {
	if err := s.run(line); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		s.log.Debug(errors.ErrorStack(err))
	}
}

func (s *session) run(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "help":
		for _, c := range commands {
			fmt.Fprintf(s.out, "%-8s %s\n", c.Text, c.Description)
		}
		return nil
	case "info":
		return s.info(args[1:])
	case "get":
		return s.get(args[1:])
	case "set":
		return s.set(args[1:])
	case "release":
		return s.release(args[1:])
	}
	return errors.NotValidf("command=%q, try help", args[0])
}

func (s *session) info(args []string) error {
	var offsets []uint32
	if len(args) == 0 {
		for o := uint32(0); o < s.chip.Info().Lines; o++ {
			offsets = append(offsets, o)
		}
	} else {
		var err error
		if offsets, err = parseOffsets(args); err != nil {
			return err
		}
	}
	for _, o := range offsets {
		li, err := s.chip.LineInfo(s.ctx, o)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, li)
	}
	return nil
}

// holder finds held request containing offset.
func (s *session) holder(offset uint32) (*gpio.OutputLines, int) {
	for _, h := range s.held {
		if i, ok := h.Info().Index(offset); ok {
			return h, i
		}
	}
	return nil, -1
}

func (s *session) get(args []string) error {
	offsets, err := subcmd.ParseOffsets(args)
	if err != nil {
		return err
	}
	values := make([]bool, len(offsets))
	free := make([]uint32, 0, len(offsets))
	freeIdx := make([]int, 0, len(offsets))
	for i, o := range offsets {
		h, hi := s.holder(o)
		if h == nil {
			free = append(free, o)
			freeIdx = append(freeIdx, i)
			continue
		}
		m, err := h.GetMasked(s.ctx, gpio.Masked{}.Set(hi, false))
		if err != nil {
			return err
		}
		values[i], _ = m.Get(hi)
	}
	if len(free) != 0 {
		active, bias, err := s.c.Get.Parse()
		if err != nil {
			return err
		}
		opts, err := gpio.Input(free...)
		if err != nil {
			return err
		}
		in, err := s.chip.RequestInput(s.ctx, opts.Active(active).Bias(bias).Consumer(s.c.Get.Consumer))
		if err != nil {
			return err
		}
		read, err := in.GetValues(s.ctx, nil)
		_ = in.Close()
		if err != nil {
			return err
		}
		for j, i := range freeIdx {
			values[i] = read[j]
		}
	}
	fmt.Fprintln(s.out, subcmd.FormatValues(values))
	return nil
}

// set updates one held request in place or requests new lines.
// Offsets both held and free, or spread over requests, must be released first.
func (s *session) set(args []string) error {
	offsets, values, err := subcmd.ParseAssignments(args)
	if err != nil {
		return err
	}
	var target *gpio.OutputLines
	var m gpio.Masked
	free := 0
	for i, o := range offsets {
		h, hi := s.holder(o)
		switch {
		case h == nil:
			free++
		case target == nil || target == h:
			target = h
			m = m.Set(hi, values[i])
		default:
			return errors.NotValidf("offsets in different requests, release first")
		}
	}
	if target != nil && free != 0 {
		return errors.NotValidf("offsets partially held, release first")
	}
	if target != nil {
		return target.SetMasked(s.ctx, m)
	}

	active, bias, err := s.c.Set.Parse()
	if err != nil {
		return err
	}
	var drive gpio.Drive
	if err = drive.Set(s.c.Set.Drive); err != nil {
		return err
	}
	opts, err := gpio.Output(offsets...)
	if err != nil {
		return err
	}
	opts = opts.Values(values).Drive(drive).Active(active).Bias(bias).Consumer(s.c.Set.Consumer)
	out, err := s.chip.RequestOutput(s.ctx, opts)
	if err != nil {
		return err
	}
	s.held = append(s.held, out)
	return nil
}

func (s *session) release(args []string) error {
	if len(args) == 0 {
		return s.releaseAll()
	}
	offsets, err := parseOffsets(args)
	if err != nil {
		return err
	}
	errs := make([]error, 0, len(offsets))
	drop := make([]*gpio.OutputLines, 0, len(s.held))
	for _, o := range offsets {
		h, _ := s.holder(o)
		if h == nil {
			errs = append(errs, errors.NotFoundf("held offset=%d", o))
			continue
		}
		if !containsLines(drop, h) {
			drop = append(drop, h)
		}
	}
	for _, h := range drop {
		errs = append(errs, s.drop(h))
	}
	return helpers.FoldErrors(errs)
}

func (s *session) drop(h *gpio.OutputLines) error {
	for i, x := range s.held {
		if x == h {
			s.held = append(s.held[:i], s.held[i+1:]...)
			break
		}
	}
	return h.Close()
}

func containsLines(list []*gpio.OutputLines, h *gpio.OutputLines) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}

func (s *session) releaseAll() error {
	errs := make([]error, 0, len(s.held))
	for _, h := range s.held {
		errs = append(errs, h.Close())
	}
	s.held = nil
	return helpers.FoldErrors(errs)
}

// parseOffsets is subcmd.ParseOffsets without the request size limit.
func parseOffsets(args []string) ([]uint32, error) {
	offsets := make([]uint32, 0, len(args))
	for len(args) != 0 {
		n := len(args)
		if n > gpio.MaxValues {
			n = gpio.MaxValues
		}
		part, err := subcmd.ParseOffsets(args[:n])
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, part...)
		args = args[n:]
	}
	return offsets, nil
}
