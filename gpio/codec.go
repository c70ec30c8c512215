package gpio

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/juju/errors"
)

// ChipInfo is queried once at Open and never changes.
type ChipInfo struct {
	Name  string
	Label string
	Lines uint32
}

func (ci ChipInfo) String() string {
	return fmt.Sprintf("%s [%s] (%d lines)", ci.Name, ci.Label, ci.Lines)
}

// LineInfo is a live snapshot of one line as reported by kernel.
type LineInfo struct {
	Offset    uint32
	Name      string
	Consumer  string
	Used      bool
	Direction Direction
	Active    Active
	Bias      Bias
	Drive     Drive
	Edge      EdgeDetect
	Debounce  time.Duration
}

func (li LineInfo) String() string {
	var b strings.Builder
	name := li.Name
	if name == "" {
		name = "unnamed"
	}
	consumer := li.Consumer
	if consumer == "" {
		consumer = "unused"
		if li.Used {
			consumer = "kernel"
		}
	}
	fmt.Fprintf(&b, "line %3d: %q %q %s", li.Offset, name, consumer, li.Direction)
	if li.Active == ActiveLow {
		b.WriteString(" active-low")
	}
	if li.Direction == DirectionOutput && li.Drive != DrivePushPull {
		b.WriteString(" " + li.Drive.String())
	}
	if li.Bias != BiasAsIs {
		b.WriteString(" bias=" + li.Bias.String())
	}
	if li.Edge != EdgeNone {
		b.WriteString(" edge=" + li.Edge.String())
	}
	if li.Debounce != 0 {
		b.WriteString(" debounce=" + li.Debounce.String())
	}
	return b.String()
}

// abi encodes requests for one kernel uAPI generation.
// All methods take a raw fd borrowed from os.File for the duration of the call.
type abi interface {
	String() string
	lineInfo(fd uintptr, offset uint32) (LineInfo, error)
	// requestLines returns new request fd, owned by caller.
	requestLines(fd uintptr, r *request) (int, error)
	getValues(fd uintptr, n int, mask uint64) (uint64, error)
	setValues(fd uintptr, n int, bits, mask uint64) error
	eventSize() int
	decodeEvent(raw []byte, info *ValuesInfo) (Event, error)
}

func abiByName(name string) (abi, error) {
	switch strings.ToLower(name) {
	case "":
		return abiByName(defaultABI)
	case "v1":
		return abiV1{}, nil
	case "v2":
		return abiV2{}, nil
	}
	return nil, errors.NotValidf("abi=%q (expected v1|v2)", name)
}

func chipInfo(fd uintptr) (ChipInfo, error) {
	var raw gpiochipInfo
	if err := ioctl(fd, gpioGetChipInfoIoctl, unsafe.Pointer(&raw)); err != nil {
		return ChipInfo{}, err
	}
	return ChipInfo{
		Name:  cstr(raw.name[:]),
		Label: cstr(raw.label[:]),
		Lines: raw.lines,
	}, nil
}

// copyRaw fills fixed-size kernel record dst from b, len(b) must be checked by caller.
func copyRaw(dst unsafe.Pointer, size uintptr, b []byte) {
	copy((*[1 << 16]byte)(dst)[:size:size], b)
}
