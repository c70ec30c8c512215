package gpio

// Raw kernel structures and ioctl numbers from <include/uapi/linux/gpio.h>.
// Field order and sizes must match the kernel byte for byte, see uapi_test.go.
//
// https://docs.kernel.org/userspace-api/gpio/chardev.html

import (
	"os"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// From <include/uapi/asm-generic/ioctl.h>
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNrShift | size<<iocSizeShift
}

func ior(typ, nr, size uintptr) uintptr  { return ioc(iocRead, typ, nr, size) }
func iowr(typ, nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, typ, nr, size) }

const (
	gpioMaxNameSize     = 32
	gpioHandlesMax      = 64
	gpioV2LinesMax      = 64
	gpioV2LineAttrsMax  = 10
	gpioIoctlType       = 0xb4
	consumerMaxLen      = gpioMaxNameSize - 1
	gpioV2EventRising   = 1
	gpioV2EventFalling  = 2
	gpioV1EventRising   = 0x01
	gpioV1EventFalling  = 0x02
	gpioV2AttrFlags     = 1
	gpioV2AttrOutValues = 2
	gpioV2AttrDebounce  = 3
)

// v1 line info flags
const (
	gpiolineFlagKernel     uint32 = 1 << 0
	gpiolineFlagIsOut      uint32 = 1 << 1
	gpiolineFlagActiveLow  uint32 = 1 << 2
	gpiolineFlagOpenDrain  uint32 = 1 << 3
	gpiolineFlagOpenSource uint32 = 1 << 4
	gpiolineFlagPullUp     uint32 = 1 << 5
	gpiolineFlagPullDown   uint32 = 1 << 6
	gpiolineFlagBiasOff    uint32 = 1 << 7
)

// v1 handle request flags
const (
	gpiohandleRequestInput      uint32 = 1 << 0
	gpiohandleRequestOutput     uint32 = 1 << 1
	gpiohandleRequestActiveLow  uint32 = 1 << 2
	gpiohandleRequestOpenDrain  uint32 = 1 << 3
	gpiohandleRequestOpenSource uint32 = 1 << 4
	gpiohandleRequestPullUp     uint32 = 1 << 5
	gpiohandleRequestPullDown   uint32 = 1 << 6
	gpiohandleRequestBiasOff    uint32 = 1 << 7
)

// v1 event request flags
const (
	gpioeventRequestRising  uint32 = 1 << 0
	gpioeventRequestFalling uint32 = 1 << 1
)

// v2 line flags, used both in requests and line info
const (
	gpioV2FlagUsed         uint64 = 1 << 0
	gpioV2FlagActiveLow    uint64 = 1 << 1
	gpioV2FlagInput        uint64 = 1 << 2
	gpioV2FlagOutput       uint64 = 1 << 3
	gpioV2FlagEdgeRising   uint64 = 1 << 4
	gpioV2FlagEdgeFalling  uint64 = 1 << 5
	gpioV2FlagOpenDrain    uint64 = 1 << 6
	gpioV2FlagOpenSource   uint64 = 1 << 7
	gpioV2FlagBiasPullUp   uint64 = 1 << 8
	gpioV2FlagBiasPullDown uint64 = 1 << 9
	gpioV2FlagBiasDisabled uint64 = 1 << 10
)

// struct gpiochip_info
type gpiochipInfo struct {
	name  [gpioMaxNameSize]byte
	label [gpioMaxNameSize]byte
	lines uint32
}

// struct gpioline_info
type gpiolineInfo struct {
	lineOffset uint32
	flags      uint32
	name       [gpioMaxNameSize]byte
	consumer   [gpioMaxNameSize]byte
}

// struct gpiohandle_request
type gpiohandleRequest struct {
	lineOffsets   [gpioHandlesMax]uint32
	flags         uint32
	defaultValues [gpioHandlesMax]uint8
	consumerLabel [gpioMaxNameSize]byte
	lines         uint32
	fd            int32
}

// struct gpiohandle_data
type gpiohandleData struct {
	values [gpioHandlesMax]uint8
}

// struct gpioevent_request
type gpioeventRequest struct {
	lineOffset    uint32
	handleFlags   uint32
	eventFlags    uint32
	consumerLabel [gpioMaxNameSize]byte
	fd            int32
}

// struct gpio_v2_line_attribute, value is a union selected by id
type gpioV2LineAttribute struct {
	id      uint32
	padding uint32
	value   uint64
}

// struct gpio_v2_line_config_attribute
type gpioV2LineConfigAttribute struct {
	attr gpioV2LineAttribute
	mask uint64
}

// struct gpio_v2_line_config
type gpioV2LineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [gpioV2LineAttrsMax]gpioV2LineConfigAttribute
}

// struct gpio_v2_line_request
type gpioV2LineRequest struct {
	offsets         [gpioV2LinesMax]uint32
	consumer        [gpioMaxNameSize]byte
	config          gpioV2LineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

// struct gpio_v2_line_values
type gpioV2LineValues struct {
	bits uint64
	mask uint64
}

// struct gpio_v2_line_info
type gpioV2LineInfo struct {
	name     [gpioMaxNameSize]byte
	consumer [gpioMaxNameSize]byte
	offset   uint32
	numAttrs uint32
	flags    uint64
	attrs    [gpioV2LineAttrsMax]gpioV2LineAttribute
	padding  [4]uint32
}

// struct gpio_v2_line_event
type gpioV2LineEvent struct {
	timestampNs uint64
	id          uint32
	offset      uint32
	seqno       uint32
	lineSeqno   uint32
	padding     [6]uint32
}

var (
	gpioGetChipInfoIoctl         = ior(gpioIoctlType, 0x01, unsafe.Sizeof(gpiochipInfo{}))
	gpioGetLineInfoIoctl         = iowr(gpioIoctlType, 0x02, unsafe.Sizeof(gpiolineInfo{}))
	gpioGetLineHandleIoctl       = iowr(gpioIoctlType, 0x03, unsafe.Sizeof(gpiohandleRequest{}))
	gpioGetLineEventIoctl        = iowr(gpioIoctlType, 0x04, unsafe.Sizeof(gpioeventRequest{}))
	gpiohandleGetLineValuesIoctl = iowr(gpioIoctlType, 0x08, unsafe.Sizeof(gpiohandleData{}))
	gpiohandleSetLineValuesIoctl = iowr(gpioIoctlType, 0x09, unsafe.Sizeof(gpiohandleData{}))
	gpioV2GetLineInfoIoctl       = iowr(gpioIoctlType, 0x05, unsafe.Sizeof(gpioV2LineInfo{}))
	gpioV2GetLineIoctl           = iowr(gpioIoctlType, 0x07, unsafe.Sizeof(gpioV2LineRequest{}))
	gpioV2LineGetValuesIoctl     = iowr(gpioIoctlType, 0x0e, unsafe.Sizeof(gpioV2LineValues{}))
	gpioV2LineSetValuesIoctl     = iowr(gpioIoctlType, 0x0f, unsafe.Sizeof(gpioV2LineValues{}))
)

var ioctlNames = map[uintptr]string{
	gpioGetChipInfoIoctl:         "GPIO_GET_CHIPINFO_IOCTL",
	gpioGetLineInfoIoctl:         "GPIO_GET_LINEINFO_IOCTL",
	gpioGetLineHandleIoctl:       "GPIO_GET_LINEHANDLE_IOCTL",
	gpioGetLineEventIoctl:        "GPIO_GET_LINEEVENT_IOCTL",
	gpiohandleGetLineValuesIoctl: "GPIOHANDLE_GET_LINE_VALUES_IOCTL",
	gpiohandleSetLineValuesIoctl: "GPIOHANDLE_SET_LINE_VALUES_IOCTL",
	gpioV2GetLineInfoIoctl:       "GPIO_V2_GET_LINEINFO_IOCTL",
	gpioV2GetLineIoctl:           "GPIO_V2_GET_LINE_IOCTL",
	gpioV2LineGetValuesIoctl:     "GPIO_V2_LINE_GET_VALUES_IOCTL",
	gpioV2LineSetValuesIoctl:     "GPIO_V2_LINE_SET_VALUES_IOCTL",
}

// kernelIoctl is the only path to the kernel, replaced by tests.
var kernelIoctl = sysIoctl

func sysIoctl(fd, op uintptr, arg unsafe.Pointer) error {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, uintptr(arg))
	if errno != 0 {
		return os.NewSyscallError("SYS_IOCTL", errno)
	}
	if r != 0 {
		return errors.Errorf("SYS_IOCTL r=%d", r)
	}
	return nil
}

// ioctl issues one request and annotates failure with the request name.
// Would-block and interrupted calls are surfaced as is.
func ioctl(fd, op uintptr, arg unsafe.Pointer) error {
	if err := kernelIoctl(fd, op, arg); err != nil {
		return errors.Annotate(err, ioctlNames[op])
	}
	return nil
}

func cstr(bs []byte) string {
	for i, b := range bs {
		if b == 0 {
			return string(bs[:i])
		}
	}
	return string(bs)
}

// putConsumer truncates s so the kernel always sees a NUL terminated label.
func putConsumer(dst *[gpioMaxNameSize]byte, s string) {
	*dst = [gpioMaxNameSize]byte{}
	if len(s) > consumerMaxLen {
		s = s[:consumerMaxLen]
	}
	copy(dst[:], s)
}
