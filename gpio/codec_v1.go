package gpio

import (
	"time"
	"unsafe"

	"github.com/juju/errors"
)

// abiV1 is the deprecated GPIOHANDLE/GPIOEVENT uAPI, kernels before 5.10.
// Edge detection takes a separate LINEEVENT request per line.
type abiV1 struct{}

func (abiV1) String() string { return "v1" }

func (abiV1) lineInfo(fd uintptr, offset uint32) (LineInfo, error) {
	raw := gpiolineInfo{lineOffset: offset}
	if err := ioctl(fd, gpioGetLineInfoIoctl, unsafe.Pointer(&raw)); err != nil {
		return LineInfo{}, err
	}
	li := LineInfo{
		Offset:    raw.lineOffset,
		Name:      cstr(raw.name[:]),
		Consumer:  cstr(raw.consumer[:]),
		Used:      raw.flags&gpiolineFlagKernel != 0,
		Direction: DirectionInput,
	}
	if raw.flags&gpiolineFlagIsOut != 0 {
		li.Direction = DirectionOutput
	}
	if raw.flags&gpiolineFlagActiveLow != 0 {
		li.Active = ActiveLow
	}
	switch {
	case raw.flags&gpiolineFlagOpenDrain != 0:
		li.Drive = DriveOpenDrain
	case raw.flags&gpiolineFlagOpenSource != 0:
		li.Drive = DriveOpenSource
	}
	switch {
	case raw.flags&gpiolineFlagPullUp != 0:
		li.Bias = BiasPullUp
	case raw.flags&gpiolineFlagPullDown != 0:
		li.Bias = BiasPullDown
	case raw.flags&gpiolineFlagBiasOff != 0:
		li.Bias = BiasDisable
	}
	return li, nil
}

func (abiV1) handleFlags(r *request) uint32 {
	var flags uint32
	switch r.direction {
	case DirectionInput:
		flags |= gpiohandleRequestInput
	case DirectionOutput:
		flags |= gpiohandleRequestOutput
		switch r.drive {
		case DriveOpenDrain:
			flags |= gpiohandleRequestOpenDrain
		case DriveOpenSource:
			flags |= gpiohandleRequestOpenSource
		}
	}
	if r.active == ActiveLow {
		flags |= gpiohandleRequestActiveLow
	}
	switch r.bias {
	case BiasDisable:
		flags |= gpiohandleRequestBiasOff
	case BiasPullUp:
		flags |= gpiohandleRequestPullUp
	case BiasPullDown:
		flags |= gpiohandleRequestPullDown
	}
	return flags
}

func (a abiV1) requestLines(fd uintptr, r *request) (int, error) {
	if err := r.validate(); err != nil {
		return -1, err
	}
	if len(r.offsets) > gpioHandlesMax {
		return -1, errors.NotValidf("v1 lines=%d max=%d", len(r.offsets), gpioHandlesMax)
	}
	if r.edge != EdgeNone {
		return a.requestEvent(fd, r)
	}
	var raw gpiohandleRequest
	for i, o := range r.offsets {
		raw.lineOffsets[i] = o
	}
	for i, v := range r.values {
		if v {
			raw.defaultValues[i] = 1
		}
	}
	raw.flags = a.handleFlags(r)
	putConsumer(&raw.consumerLabel, r.consumer)
	raw.lines = uint32(len(r.offsets))
	if err := ioctl(fd, gpioGetLineHandleIoctl, unsafe.Pointer(&raw)); err != nil {
		return -1, err
	}
	return int(raw.fd), nil
}

func (a abiV1) requestEvent(fd uintptr, r *request) (int, error) {
	if len(r.offsets) != 1 {
		return -1, errors.NotValidf("v1 edge detection with lines=%d, only single line", len(r.offsets))
	}
	raw := gpioeventRequest{
		lineOffset:  r.offsets[0],
		handleFlags: a.handleFlags(r),
	}
	switch r.edge {
	case EdgeRising:
		raw.eventFlags = gpioeventRequestRising
	case EdgeFalling:
		raw.eventFlags = gpioeventRequestFalling
	case EdgeBoth:
		raw.eventFlags = gpioeventRequestRising | gpioeventRequestFalling
	}
	putConsumer(&raw.consumerLabel, r.consumer)
	if err := ioctl(fd, gpioGetLineEventIoctl, unsafe.Pointer(&raw)); err != nil {
		return -1, err
	}
	return int(raw.fd), nil
}

func (abiV1) getValues(fd uintptr, n int, mask uint64) (uint64, error) {
	if n > gpioHandlesMax {
		return 0, errors.NotValidf("v1 lines=%d max=%d", n, gpioHandlesMax)
	}
	var data gpiohandleData
	if err := ioctl(fd, gpiohandleGetLineValuesIoctl, unsafe.Pointer(&data)); err != nil {
		return 0, err
	}
	var b uint64
	for i := 0; i < n; i++ {
		if data.values[i] != 0 {
			b |= 1 << uint(i)
		}
	}
	return b & mask, nil
}

// setValues of subset of lines is read-merge-write, not atomic against other writers.
func (a abiV1) setValues(fd uintptr, n int, b, mask uint64) error {
	if n > gpioHandlesMax {
		return errors.NotValidf("v1 lines=%d max=%d", n, gpioHandlesMax)
	}
	full := lineMask(n)
	if mask&full != full {
		current, err := a.getValues(fd, n, full)
		if err != nil {
			return errors.Annotate(err, "v1 partial set")
		}
		b = current&^mask | b&mask
	}
	var data gpiohandleData
	for i := 0; i < n; i++ {
		if b&(1<<uint(i)) != 0 {
			data.values[i] = 1
		}
	}
	return ioctl(fd, gpiohandleSetLineValuesIoctl, unsafe.Pointer(&data))
}

func (abiV1) eventSize() int { return int(unsafe.Sizeof(gpioeventData{})) }

func (a abiV1) decodeEvent(b []byte, info *ValuesInfo) (Event, error) {
	var raw gpioeventData
	size := unsafe.Sizeof(raw)
	if len(b) != int(size) {
		return Event{}, &ProtocolError{Op: "gpioevent_data", Got: len(b), Want: int(size)}
	}
	copyRaw(unsafe.Pointer(&raw), size, b)
	e := Event{Line: 0, Time: time.Duration(raw.timestamp)}
	switch raw.id {
	case gpioV1EventRising:
		e.Edge = Rising
	case gpioV1EventFalling:
		e.Edge = Falling
	default:
		return Event{}, &ProtocolError{Op: "gpioevent_data", Got: int(raw.id), Msg: "unknown event id"}
	}
	if info.Len() > 0 {
		e.Offset = info.offsets[0]
	}
	return e, nil
}
