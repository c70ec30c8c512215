package gpio

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/log2"
	"golang.org/x/sys/unix"
)

// Chip is an open /dev/gpiochipN. Safe for concurrent use.
// You must call Close(). Line requests stay valid after Chip is closed.
type Chip struct {
	f      *os.File
	path   string
	info   ChipInfo
	abi    abi
	log    *log2.Log
	closed uint32
}

// Open validates path as GPIO character device and queries chip info.
// Bare name like "gpiochip0" is looked up in DevDir.
func (c *Config) Open(ctx context.Context, path string) (*Chip, error) {
	path = c.resolve(path)
	a, err := c.abi()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Annotate(err, "gpio.Open")
	}
	if err = c.checkDevice(path); err != nil {
		_ = f.Close()
		return nil, errors.Annotate(err, "gpio.Open")
	}
	chip, err := newChip(ctx, f, path, a, c.log(ctx))
	if err != nil {
		return nil, errors.Annotatef(err, "gpio.Open %s", path)
	}
	return chip, nil
}

// newChip takes ownership of f, closing it on error.
func newChip(ctx context.Context, f *os.File, path string, a abi, log *log2.Log) (*Chip, error) {
	chip := &Chip{f: f, path: path, abi: a, log: log}
	var info ChipInfo
	err := asyncify(ctx, func() error {
		return control(f, func(fd uintptr) error {
			var err error
			info, err = chipInfo(fd)
			return err
		})
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	chip.info = info
	log.Debugf("gpio: open %s abi=%s %s", path, a, info)
	return chip, nil
}

func (c *Chip) Info() ChipInfo { return c.info }
func (c *Chip) Path() string   { return c.path }
func (c *Chip) String() string { return c.info.String() }

func (c *Chip) checkOpen() error {
	if atomic.LoadUint32(&c.closed) != 0 {
		return ErrClosed
	}
	return nil
}

// LineInfo queries kernel each time, nothing is cached.
func (c *Chip) LineInfo(ctx context.Context, offset uint32) (LineInfo, error) {
	if err := c.checkOpen(); err != nil {
		return LineInfo{}, err
	}
	if offset >= c.info.Lines {
		return LineInfo{}, errors.NotValidf("offset=%d chip %s lines=%d", offset, c.info.Name, c.info.Lines)
	}
	var li LineInfo
	err := asyncify(ctx, func() error {
		return control(c.f, func(fd uintptr) error {
			var err error
			li, err = c.abi.lineInfo(fd, offset)
			return err
		})
	})
	if err != nil {
		return LineInfo{}, errors.Annotatef(err, "LineInfo offset=%d", offset)
	}
	return li, nil
}

// RequestInput takes ownership of input lines.
func (c *Chip) RequestInput(ctx context.Context, opts InputOptions) (*InputLines, error) {
	l, err := c.request(ctx, opts.request())
	if err != nil {
		return nil, errors.Annotate(err, "RequestInput")
	}
	return &InputLines{lines: l}, nil
}

// RequestOutput takes ownership of output lines.
func (c *Chip) RequestOutput(ctx context.Context, opts OutputOptions) (*OutputLines, error) {
	l, err := c.request(ctx, opts.request())
	if err != nil {
		return nil, errors.Annotate(err, "RequestOutput")
	}
	return &OutputLines{lines: l}, nil
}

func (c *Chip) request(ctx context.Context, r *request) (*lines, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	for _, o := range r.offsets {
		if o >= c.info.Lines {
			return nil, errors.NotValidf("offset=%d chip %s lines=%d", o, c.info.Name, c.info.Lines)
		}
	}
	var h fdHandoff
	err := asyncify(ctx, func() error {
		return control(c.f, func(fd uintptr) error {
			reqfd, err := c.abi.requestLines(fd, r)
			if err != nil {
				return err
			}
			if reqfd <= 0 {
				return &ProtocolError{Op: "request lines", Got: reqfd, Msg: "ioctl=success with bad fd"}
			}
			if err = unix.SetNonblock(reqfd, true); err != nil {
				_ = unix.Close(reqfd)
				return os.NewSyscallError("SetNonblock", err)
			}
			h.give(reqfd)
			return nil
		})
	})
	if err != nil {
		h.abandon()
		return nil, err
	}
	info := newValuesInfo(c.info.Name, r)
	f := os.NewFile(uintptr(h.fd), fmt.Sprintf("gpio:%s:%v", c.info.Name, r.offsets))
	c.log.Debugf("gpio: request %s", info)
	return &lines{f: f, info: info, abi: c.abi, log: c.log}, nil
}

// Close releases chip fd. Second call returns ErrClosed.
func (c *Chip) Close() error {
	if atomic.AddUint32(&c.closed, 1) != 1 {
		return ErrClosed
	}
	c.log.Debugf("gpio: close %s", c.path)
	return errors.Annotate(c.f.Close(), "gpio.Chip.Close")
}
