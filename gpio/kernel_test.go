package gpio

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/temoto/gpiod/log2"
	"golang.org/x/sys/unix"
)

// fakeKernel emulates gpio chardev ioctls in process.
// Request fds are read ends of real pipes, so event reads go through runtime poller.
// Error injection: k.On("ioctl", "GPIO_V2_GET_LINE_IOCTL").Return(syscall.EBUSY) before install().
type fakeKernel struct {
	mock.Mock
	mu       sync.Mutex
	name     string
	lines    uint32
	requests map[uintptr]*fakeRequest
	last     *fakeRequest
	lastV1   gpiohandleRequest
	lastEv   gpioeventRequest
	lastV2   gpioV2LineRequest
}

type fakeRequest struct {
	offsets  []uint32
	consumer string
	flags    uint64
	values   uint64
	writer   int
	sets     int
}

func newFakeKernel(lines uint32) *fakeKernel {
	return &fakeKernel{
		name:     "gpiochip9",
		lines:    lines,
		requests: make(map[uintptr]*fakeRequest),
	}
}

func (k *fakeKernel) install(t testing.TB) {
	k.On("ioctl", mock.Anything).Return(nil)
	saved := kernelIoctl
	kernelIoctl = k.ioctl
	t.Cleanup(func() {
		kernelIoctl = saved
		k.mu.Lock()
		defer k.mu.Unlock()
		for _, r := range k.requests {
			_ = unix.Close(r.writer)
		}
	})
}

func (k *fakeKernel) lastRequest() *fakeRequest {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.last
}

// emit queues raw event record on the last request.
func (k *fakeKernel) emit(t testing.TB, b []byte) {
	r := k.lastRequest()
	require.NotNil(t, r)
	n, err := unix.Write(r.writer, b)
	require.NoError(t, err)
	require.Equal(t, len(b), n)
}

func (k *fakeKernel) newRequest(offsets []uint32, consumer string, flags, values uint64) (int32, error) {
	for _, o := range offsets {
		if o >= k.lines {
			return -1, syscall.EINVAL
		}
	}
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return -1, err
	}
	r := &fakeRequest{
		offsets:  append([]uint32(nil), offsets...),
		consumer: consumer,
		flags:    flags,
		values:   values,
		writer:   p[1],
	}
	k.requests[uintptr(p[0])] = r
	k.last = r
	return int32(p[0]), nil
}

func (k *fakeKernel) ioctl(fd, op uintptr, arg unsafe.Pointer) error {
	if err := k.MethodCalled("ioctl", ioctlNames[op]).Error(0); err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	switch op {
	case gpioGetChipInfoIoctl:
		raw := (*gpiochipInfo)(arg)
		copy(raw.name[:], k.name)
		copy(raw.label[:], "fake")
		raw.lines = k.lines

	case gpioGetLineInfoIoctl:
		raw := (*gpiolineInfo)(arg)
		if raw.lineOffset >= k.lines {
			return syscall.EINVAL
		}
		copy(raw.name[:], fmt.Sprintf("L%d", raw.lineOffset))
		if raw.lineOffset%2 == 1 {
			raw.flags = gpiolineFlagKernel | gpiolineFlagIsOut | gpiolineFlagActiveLow | gpiolineFlagOpenDrain
			copy(raw.consumer[:], "other")
		}

	case gpioV2GetLineInfoIoctl:
		raw := (*gpioV2LineInfo)(arg)
		if raw.offset >= k.lines {
			return syscall.EINVAL
		}
		copy(raw.name[:], fmt.Sprintf("L%d", raw.offset))
		raw.flags = gpioV2FlagInput
		if raw.offset%2 == 1 {
			raw.flags = gpioV2FlagUsed | gpioV2FlagInput | gpioV2FlagBiasPullUp | gpioV2FlagEdgeRising | gpioV2FlagEdgeFalling
			copy(raw.consumer[:], "other")
			raw.numAttrs = 1
			raw.attrs[0] = gpioV2LineAttribute{id: gpioV2AttrDebounce, value: 1500}
		}

	case gpioGetLineHandleIoctl:
		raw := (*gpiohandleRequest)(arg)
		k.lastV1 = *raw
		var values uint64
		for i := 0; i < int(raw.lines); i++ {
			if raw.defaultValues[i] != 0 {
				values |= 1 << uint(i)
			}
		}
		reqfd, err := k.newRequest(raw.lineOffsets[:raw.lines], cstr(raw.consumerLabel[:]), uint64(raw.flags), values)
		if err != nil {
			return err
		}
		raw.fd = reqfd

	case gpioGetLineEventIoctl:
		raw := (*gpioeventRequest)(arg)
		k.lastEv = *raw
		reqfd, err := k.newRequest([]uint32{raw.lineOffset}, cstr(raw.consumerLabel[:]), uint64(raw.handleFlags), 0)
		if err != nil {
			return err
		}
		raw.fd = reqfd

	case gpioV2GetLineIoctl:
		raw := (*gpioV2LineRequest)(arg)
		k.lastV2 = *raw
		var values uint64
		for _, attr := range raw.config.attrs[:raw.config.numAttrs] {
			if attr.attr.id == gpioV2AttrOutValues {
				values = attr.attr.value & attr.mask
			}
		}
		reqfd, err := k.newRequest(raw.offsets[:raw.numLines], cstr(raw.consumer[:]), raw.config.flags, values)
		if err != nil {
			return err
		}
		raw.fd = reqfd

	case gpiohandleGetLineValuesIoctl:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		data := (*gpiohandleData)(arg)
		for i := range r.offsets {
			data.values[i] = uint8(r.values >> uint(i) & 1)
		}

	case gpiohandleSetLineValuesIoctl:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		if uint32(r.flags)&gpiohandleRequestOutput == 0 {
			return syscall.EPERM
		}
		data := (*gpiohandleData)(arg)
		r.values = 0
		for i := range r.offsets {
			if data.values[i] != 0 {
				r.values |= 1 << uint(i)
			}
		}
		r.sets++

	case gpioV2LineGetValuesIoctl:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		lv := (*gpioV2LineValues)(arg)
		if lv.mask == 0 {
			return syscall.EINVAL
		}
		lv.bits = r.values & lv.mask

	case gpioV2LineSetValuesIoctl:
		r, ok := k.requests[fd]
		if !ok {
			return syscall.EBADF
		}
		if r.flags&gpioV2FlagOutput == 0 {
			return syscall.EPERM
		}
		lv := (*gpioV2LineValues)(arg)
		r.values = r.values&^lv.mask | lv.bits&lv.mask
		r.sets++

	default:
		return syscall.ENOTTY
	}
	return nil
}

// newTestChip wraps temp file as chip fd, ioctls go to fake kernel.
func newTestChip(t testing.TB, k *fakeKernel, a abi) *Chip {
	k.install(t)
	f, err := ioutil.TempFile(t.TempDir(), "gpiochip")
	require.NoError(t, err)
	chip, err := newChip(context.Background(), f, filepath.Join("/dev", k.name), a, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	t.Cleanup(func() { _ = chip.Close() })
	return chip
}

func v2EventBytes(e gpioV2LineEvent) []byte {
	b := make([]byte, unsafe.Sizeof(e))
	copy(b, (*[unsafe.Sizeof(gpioV2LineEvent{})]byte)(unsafe.Pointer(&e))[:])
	return b
}

func v1EventBytes(e gpioeventData) []byte {
	b := make([]byte, unsafe.Sizeof(e))
	copy(b, (*[unsafe.Sizeof(gpioeventData{})]byte)(unsafe.Pointer(&e))[:])
	return b
}
