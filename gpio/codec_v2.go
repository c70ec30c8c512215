package gpio

import (
	"time"
	"unsafe"

	"github.com/juju/errors"
)

// abiV2 is the GPIO_V2 line uAPI, kernels 5.10+.
type abiV2 struct{}

func (abiV2) String() string { return "v2" }

func (abiV2) lineInfo(fd uintptr, offset uint32) (LineInfo, error) {
	raw := gpioV2LineInfo{offset: offset}
	if err := ioctl(fd, gpioV2GetLineInfoIoctl, unsafe.Pointer(&raw)); err != nil {
		return LineInfo{}, err
	}
	li := LineInfo{
		Offset:    raw.offset,
		Name:      cstr(raw.name[:]),
		Consumer:  cstr(raw.consumer[:]),
		Used:      raw.flags&gpioV2FlagUsed != 0,
		Direction: DirectionUnknown,
	}
	switch {
	case raw.flags&gpioV2FlagOutput != 0:
		li.Direction = DirectionOutput
	case raw.flags&gpioV2FlagInput != 0:
		li.Direction = DirectionInput
	}
	if raw.flags&gpioV2FlagActiveLow != 0 {
		li.Active = ActiveLow
	}
	switch {
	case raw.flags&gpioV2FlagOpenDrain != 0:
		li.Drive = DriveOpenDrain
	case raw.flags&gpioV2FlagOpenSource != 0:
		li.Drive = DriveOpenSource
	}
	switch {
	case raw.flags&gpioV2FlagBiasPullUp != 0:
		li.Bias = BiasPullUp
	case raw.flags&gpioV2FlagBiasPullDown != 0:
		li.Bias = BiasPullDown
	case raw.flags&gpioV2FlagBiasDisabled != 0:
		li.Bias = BiasDisable
	}
	rising, falling := raw.flags&gpioV2FlagEdgeRising != 0, raw.flags&gpioV2FlagEdgeFalling != 0
	switch {
	case rising && falling:
		li.Edge = EdgeBoth
	case rising:
		li.Edge = EdgeRising
	case falling:
		li.Edge = EdgeFalling
	}
	n := int(raw.numAttrs)
	if n > gpioV2LineAttrsMax {
		n = gpioV2LineAttrsMax
	}
	for _, attr := range raw.attrs[:n] {
		if attr.id == gpioV2AttrDebounce {
			li.Debounce = time.Duration(uint32(attr.value)) * time.Microsecond
		}
	}
	return li, nil
}

func (abiV2) lineFlags(r *request) uint64 {
	var flags uint64
	switch r.direction {
	case DirectionInput:
		flags |= gpioV2FlagInput
		switch r.edge {
		case EdgeRising:
			flags |= gpioV2FlagEdgeRising
		case EdgeFalling:
			flags |= gpioV2FlagEdgeFalling
		case EdgeBoth:
			flags |= gpioV2FlagEdgeRising | gpioV2FlagEdgeFalling
		}
	case DirectionOutput:
		flags |= gpioV2FlagOutput
		switch r.drive {
		case DriveOpenDrain:
			flags |= gpioV2FlagOpenDrain
		case DriveOpenSource:
			flags |= gpioV2FlagOpenSource
		}
	}
	if r.active == ActiveLow {
		flags |= gpioV2FlagActiveLow
	}
	switch r.bias {
	case BiasDisable:
		flags |= gpioV2FlagBiasDisabled
	case BiasPullUp:
		flags |= gpioV2FlagBiasPullUp
	case BiasPullDown:
		flags |= gpioV2FlagBiasPullDown
	}
	return flags
}

func (a abiV2) encodeRequest(r *request) (*gpioV2LineRequest, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	n := len(r.offsets)
	if n > gpioV2LinesMax {
		return nil, errors.NotValidf("lines=%d max=%d", n, gpioV2LinesMax)
	}
	raw := &gpioV2LineRequest{numLines: uint32(n)}
	copy(raw.offsets[:], r.offsets)
	putConsumer(&raw.consumer, r.consumer)
	raw.config.flags = a.lineFlags(r)
	if r.direction == DirectionOutput && r.values != nil {
		b, mask, err := encodeValues(r.values, n)
		if err != nil {
			return nil, err
		}
		raw.config.attrs[0] = gpioV2LineConfigAttribute{
			attr: gpioV2LineAttribute{id: gpioV2AttrOutValues, value: b},
			mask: mask,
		}
		raw.config.numAttrs = 1
	}
	return raw, nil
}

func (a abiV2) requestLines(fd uintptr, r *request) (int, error) {
	raw, err := a.encodeRequest(r)
	if err != nil {
		return -1, err
	}
	if err := ioctl(fd, gpioV2GetLineIoctl, unsafe.Pointer(raw)); err != nil {
		return -1, err
	}
	return int(raw.fd), nil
}

func (abiV2) getValues(fd uintptr, n int, mask uint64) (uint64, error) {
	lv := gpioV2LineValues{mask: mask & lineMask(n)}
	if err := ioctl(fd, gpioV2LineGetValuesIoctl, unsafe.Pointer(&lv)); err != nil {
		return 0, err
	}
	return lv.bits & lv.mask, nil
}

func (abiV2) setValues(fd uintptr, n int, b, mask uint64) error {
	lv := gpioV2LineValues{bits: b & mask, mask: mask & lineMask(n)}
	return ioctl(fd, gpioV2LineSetValuesIoctl, unsafe.Pointer(&lv))
}

func (abiV2) eventSize() int { return int(unsafe.Sizeof(gpioV2LineEvent{})) }

func (abiV2) decodeEvent(b []byte, info *ValuesInfo) (Event, error) {
	var raw gpioV2LineEvent
	size := unsafe.Sizeof(raw)
	if len(b) != int(size) {
		return Event{}, &ProtocolError{Op: "gpio_v2_line_event", Got: len(b), Want: int(size)}
	}
	copyRaw(unsafe.Pointer(&raw), size, b)
	e := Event{
		Offset:    raw.offset,
		Time:      time.Duration(raw.timestampNs),
		Seqno:     raw.seqno,
		LineSeqno: raw.lineSeqno,
	}
	switch raw.id {
	case gpioV2EventRising:
		e.Edge = Rising
	case gpioV2EventFalling:
		e.Edge = Falling
	default:
		return Event{}, &ProtocolError{Op: "gpio_v2_line_event", Got: int(raw.id), Msg: "unknown event id"}
	}
	line, ok := info.Index(raw.offset)
	if !ok {
		return Event{}, &ProtocolError{Op: "gpio_v2_line_event", Got: int(raw.offset), Msg: "offset outside request"}
	}
	e.Line = line
	return e, nil
}
