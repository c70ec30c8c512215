package mon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/helpers"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

const (
	modName = "mon"
	usage   = "[-edge both] [-active high] [-bias disable] [-consumer gpiomon] [-n 0] chip offset..."
)

var Mod = subcmd.Mod{Name: modName, Usage: usage, Main: Main}

type eventReader interface {
	ReadEvent(ctx context.Context) (gpio.Event, error)
}

type eventSink interface {
	Publish(e gpio.Event) error
	Close()
}

func Main(ctx context.Context, c *config.Config, args []string) error {
	log := c.Log()
	active, bias, err := c.Mon.Parse()
	if err != nil {
		return errors.Annotate(err, modName)
	}
	var edge gpio.EdgeDetect
	if err = edge.Set(c.Mon.Edge); err != nil {
		return errors.Annotate(err, modName)
	}
	fs := subcmd.NewFlagSet(modName, usage)
	fs.Var(&edge, "edge", "rising|falling|both")
	fs.Var(&bias, "bias", "as-is|disable|pull-up|pull-down")
	fs.Var(&active, "active", "high|low")
	consumer := fs.String("consumer", c.Mon.Consumer, "consumer label")
	limit := fs.Int("n", 0, "exit after this many events, 0 is unlimited")
	if err = fs.Parse(args); err != nil {
		return errors.NotValidf("%s: %v", modName, err)
	}
	if edge == gpio.EdgeNone {
		return errors.NotValidf("%s: edge=none", modName)
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return errors.NotValidf("%s: chip and offsets", modName)
	}
	offsets, err := subcmd.ParseOffsets(fs.Args()[1:])
	if err != nil {
		return errors.Annotate(err, modName)
	}
	opts, err := gpio.Input(offsets...)
	if err != nil {
		return errors.Annotate(err, modName)
	}

	chip, err := subcmd.OpenChip(ctx, c, fs.Arg(0))
	if err != nil {
		return err
	}
	defer chip.Close()
	lines, err := chip.RequestInput(ctx, opts.Edge(edge).Active(active).Bias(bias).Consumer(*consumer))
	if err != nil {
		return errors.Annotate(err, modName)
	}
	defer lines.Close()

	sinks := []eventSink{&printSink{}}
	if c.Mon.Mqtt.Enable {
		ms, err := newMqttSink(c.Mon.Mqtt, log)
		if err != nil {
			return errors.Annotate(err, modName)
		}
		sinks = append(sinks, ms)
		log.SetErrorFunc(ms.publishError)
		defer log.SetErrorFunc(nil)
	}
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()

	root := alive.NewAlive()
	defer root.Stop()
	go stopOnSignal(root)
	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Debugf("%s: %s", modName, lines.Info())
	err = Loop(ctx, root, lines, sinks, *limit, log)
	subcmd.SdNotify(daemon.SdNotifyStopping)
	return err
}

// Loop reads events until root stops, ctx is done or limit events were seen.
// Sink errors are logged, not fatal.
func Loop(ctx context.Context, root *alive.Alive, r eventReader, sinks []eventSink, limit int, log *log2.Log) error {
	loop := alive.NewAlive()
	go helpers.AliveSub(root, loop)
	defer loop.Stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-loop.StopChan()
		cancel()
	}()

	for count := 0; limit <= 0 || count < limit; count++ {
		e, err := r.ReadEvent(ctx)
		if err != nil {
			if !loop.IsRunning() || ctx.Err() != nil {
				return nil
			}
			return errors.Annotate(err, modName)
		}
		for _, s := range sinks {
			if err := s.Publish(e); err != nil {
				log.Errorf("%s: publish %s: %v", modName, e, err)
			}
		}
	}
	return nil
}

func stopOnSignal(a *alive.Alive) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)
	select {
	case <-signalCh:
		a.Stop()
	case <-a.StopChan():
	}
}

type printSink struct{}

func (printSink) Publish(e gpio.Event) error {
	_, err := fmt.Fprintln(subcmd.Stdout, subcmd.FormatEvent(e))
	return err
}
func (printSink) Close() {}
