package gpio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/gpiod/log2"
)

// ValuesInfo describes an active line request. Immutable.
// Index i of values and bit i of bitmaps refer to Offsets()[i].
type ValuesInfo struct {
	chip      string
	consumer  string
	offsets   []uint32
	index     map[uint32]int
	direction Direction
	active    Active
	bias      Bias
	drive     Drive
	edge      EdgeDetect
}

func newValuesInfo(chip string, r *request) *ValuesInfo {
	vi := &ValuesInfo{
		chip:      chip,
		consumer:  r.consumer,
		offsets:   copyOffsets(r.offsets),
		index:     make(map[uint32]int, len(r.offsets)),
		direction: r.direction,
		active:    r.active,
		bias:      r.bias,
		drive:     r.drive,
		edge:      r.edge,
	}
	for i, o := range vi.offsets {
		vi.index[o] = i
	}
	return vi
}

func (vi *ValuesInfo) Chip() string         { return vi.chip }
func (vi *ValuesInfo) Consumer() string     { return vi.consumer }
func (vi *ValuesInfo) Offsets() []uint32    { return copyOffsets(vi.offsets) }
func (vi *ValuesInfo) Len() int             { return len(vi.offsets) }
func (vi *ValuesInfo) Direction() Direction { return vi.direction }
func (vi *ValuesInfo) Edge() EdgeDetect     { return vi.edge }

// Index maps line offset to position in this request.
func (vi *ValuesInfo) Index(offset uint32) (int, bool) {
	i, ok := vi.index[offset]
	return i, ok
}

func (vi *ValuesInfo) String() string {
	s := fmt.Sprintf("chip=%s offsets=%v %s consumer=%q active=%s bias=%s",
		vi.chip, vi.offsets, vi.direction, vi.consumer, vi.active, vi.bias)
	switch vi.direction {
	case DirectionOutput:
		s += " drive=" + vi.drive.String()
	case DirectionInput:
		s += " edge=" + vi.edge.String()
	}
	return s
}

// Event is one edge transition.
type Event struct {
	// Line is index in request, Offset is line offset on chip.
	Line   int
	Offset uint32
	Edge   Edge
	// Time is kernel timestamp, CLOCK_MONOTONIC by default.
	Time time.Duration
	// Seqno and LineSeqno are zero on v1 ABI.
	Seqno     uint32
	LineSeqno uint32
}

func (e Event) String() string {
	return fmt.Sprintf("line=%d offset=%d edge=%s time=%s", e.Line, e.Offset, e.Edge, e.Time)
}

// lines is common part of input and output requests.
type lines struct {
	f      *os.File
	info   *ValuesInfo
	abi    abi
	log    *log2.Log
	closed uint32
	readMu sync.Mutex
}

func (l *lines) Info() *ValuesInfo { return l.info }

func (l *lines) checkOpen() error {
	if atomic.LoadUint32(&l.closed) != 0 {
		return ErrClosed
	}
	return nil
}

func (l *lines) ioctl(ctx context.Context, fn func(fd uintptr) error) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	return asyncify(ctx, func() error { return control(l.f, fn) })
}

func (l *lines) getBits(ctx context.Context, mask uint64) (uint64, error) {
	var b uint64
	n := l.info.Len()
	err := l.ioctl(ctx, func(fd uintptr) error {
		var err error
		b, err = l.abi.getValues(fd, n, mask)
		return err
	})
	return b, err
}

func (l *lines) setBits(ctx context.Context, b, mask uint64) error {
	n := l.info.Len()
	return l.ioctl(ctx, func(fd uintptr) error {
		return l.abi.setValues(fd, n, b, mask)
	})
}

// GetValues reads all lines. buf is reused when its length matches, nil allocates.
func (l *lines) GetValues(ctx context.Context, buf []bool) ([]bool, error) {
	n := l.info.Len()
	if buf == nil {
		buf = make([]bool, n)
	}
	if len(buf) != n {
		return nil, errors.NotValidf("GetValues buf len=%d lines=%d", len(buf), n)
	}
	b, err := l.getBits(ctx, lineMask(n))
	if err != nil {
		return nil, errors.Annotatef(err, "GetValues %s", l.info.chip)
	}
	for i := range buf {
		buf[i] = b&(1<<uint(i)) != 0
	}
	return buf, nil
}

// GetMasked reads only lines present in m.Mask, m.Bits is ignored.
func (l *lines) GetMasked(ctx context.Context, m Masked) (Masked, error) {
	_, mask, err := encodeMasked(m, l.info.Len())
	if err != nil {
		return Masked{}, errors.Annotate(err, "GetMasked")
	}
	b, err := l.getBits(ctx, mask)
	if err != nil {
		return Masked{}, errors.Annotatef(err, "GetMasked %s", l.info.chip)
	}
	return Masked{Bits: b & mask, Mask: mask}, nil
}

// Close releases lines. Second call returns ErrClosed.
// Pending ReadEvent returns ErrClosed.
func (l *lines) Close() error {
	if atomic.AddUint32(&l.closed, 1) != 1 {
		return ErrClosed
	}
	l.log.Debugf("gpio: release %s", l.info)
	return errors.Annotate(l.f.Close(), "gpio.Lines.Close")
}

// InputLines is a granted input request.
type InputLines struct {
	*lines
}

// OutputLines is a granted output request.
type OutputLines struct {
	*lines
}

// SetValues drives all lines, len(values) must equal request size.
func (o *OutputLines) SetValues(ctx context.Context, values []bool) error {
	b, mask, err := encodeValues(values, o.info.Len())
	if err != nil {
		return errors.Annotate(err, "SetValues")
	}
	return errors.Annotatef(o.setBits(ctx, b, mask), "SetValues %s", o.info.chip)
}

// SetMasked drives only lines present in m.Mask, others keep their level.
func (o *OutputLines) SetMasked(ctx context.Context, m Masked) error {
	b, mask, err := encodeMasked(m, o.info.Len())
	if err != nil {
		return errors.Annotate(err, "SetMasked")
	}
	return errors.Annotatef(o.setBits(ctx, b, mask), "SetMasked %s", o.info.chip)
}

// ReadEvent waits for next edge event. Events come in kernel order, one per call.
// Cancelling ctx interrupts the wait.
func (in *InputLines) ReadEvent(ctx context.Context) (Event, error) {
	const tag = "ReadEvent"
	if in.info.edge == EdgeNone {
		return Event{}, errors.NotValidf("%s without edge detection", tag)
	}
	if err := in.checkOpen(); err != nil {
		return Event{}, err
	}
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	in.readMu.Lock()
	defer in.readMu.Unlock()

	buf := make([]byte, in.abi.eventSize())
	n, err := in.read(ctx, buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Event{}, ctxErr
		}
		if in.checkOpen() != nil {
			return Event{}, ErrClosed
		}
		if os.IsTimeout(err) {
			return Event{}, context.DeadlineExceeded
		}
		return Event{}, errors.Annotate(err, tag)
	}
	e, err := in.abi.decodeEvent(buf[:n], in.info)
	if err != nil {
		return Event{}, errors.Annotate(err, tag)
	}
	return e, nil
}

// read is one read() on non-blocking fd with runtime poller waiting for readiness.
func (in *InputLines) read(ctx context.Context, buf []byte) (int, error) {
	deadline, _ := ctx.Deadline()
	if err := in.f.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	if ctx.Done() == nil {
		return in.f.Read(buf)
	}
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			_ = in.f.SetReadDeadline(time.Unix(1, 0))
		case <-done:
		}
	}()
	n, err := in.f.Read(buf)
	close(done)
	<-stopped
	return n, err
}
