package gpio

import (
	"context"
	"reflect"
	"syscall"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kernelIoctl is global, tests replacing it don't run in parallel.

func TestChipInfo(t *testing.T) {
	k := newFakeKernel(8)
	chip := newTestChip(t, k, abiV2{})
	assert.Equal(t, ChipInfo{Name: "gpiochip9", Label: "fake", Lines: 8}, chip.Info())
	assert.Equal(t, "gpiochip9 [fake] (8 lines)", chip.String())
	assert.Equal(t, "/dev/gpiochip9", chip.Path())
	k.AssertCalled(t, "ioctl", "GPIO_GET_CHIPINFO_IOCTL")
}

func TestChipLineInfo(t *testing.T) {
	for _, a := range []abi{abiV1{}, abiV2{}} {
		a := a
		t.Run(a.String(), func(t *testing.T) {
			k := newFakeKernel(4)
			chip := newTestChip(t, k, a)
			ctx := context.Background()

			li, err := chip.LineInfo(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, "L0", li.Name)
			assert.False(t, li.Used)
			assert.Equal(t, DirectionInput, li.Direction)

			li, err = chip.LineInfo(ctx, 3)
			require.NoError(t, err)
			assert.True(t, li.Used)
			assert.Equal(t, "other", li.Consumer)

			_, err = chip.LineInfo(ctx, 4)
			assert.True(t, IsInvalidArgument(err), "err=%v", err)
			k.AssertNumberOfCalls(t, "ioctl", 3) // chipinfo + 2 lineinfo
		})
	}

	k := newFakeKernel(4)
	chip := newTestChip(t, k, abiV2{})
	li, err := chip.LineInfo(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, BiasPullUp, li.Bias)
	assert.Equal(t, EdgeBoth, li.Edge)
	assert.Equal(t, 1500*time.Microsecond, li.Debounce)
}

func TestGetValues(t *testing.T) {
	for _, a := range []abi{abiV1{}, abiV2{}} {
		a := a
		t.Run(a.String(), func(t *testing.T) {
			chip := newTestChip(t, newFakeKernel(8), a)
			ctx := context.Background()

			// initial levels are set through output request, then read back
			out, err := Output(0, 2)
			require.NoError(t, err)
			lines, err := chip.RequestOutput(ctx, out.Values([]bool{true, false}).Consumer("gpioget"))
			require.NoError(t, err)
			defer lines.Close()

			values, err := lines.GetValues(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []bool{true, false}, values)
			assert.Equal(t, []uint32{0, 2}, lines.Info().Offsets())

			buf := make([]bool, 2)
			values, err = lines.GetValues(ctx, buf)
			require.NoError(t, err)
			assert.Same(t, &buf[0], &values[0], "buf reused")

			_, err = lines.GetValues(ctx, make([]bool, 3))
			assert.True(t, IsInvalidArgument(err))

			m, err := lines.GetMasked(ctx, Masked{Mask: 0x2})
			require.NoError(t, err)
			assert.Equal(t, Masked{Bits: 0, Mask: 0x2}, m)
		})
	}
}

func TestGetInputValues(t *testing.T) {
	for _, a := range []abi{abiV1{}, abiV2{}} {
		a := a
		t.Run(a.String(), func(t *testing.T) {
			k := newFakeKernel(8)
			chip := newTestChip(t, k, a)
			ctx := context.Background()

			in, err := Input(0, 2)
			require.NoError(t, err)
			lines, err := chip.RequestInput(ctx, in.Bias(BiasDisable).Active(ActiveHigh).Consumer("gpioget"))
			require.NoError(t, err)
			defer lines.Close()
			switch a.(type) {
			case abiV1:
				assert.Equal(t, gpiohandleRequestInput|gpiohandleRequestBiasOff, k.lastV1.flags)
			case abiV2:
				assert.Equal(t, gpioV2FlagInput|gpioV2FlagBiasDisabled, k.lastV2.config.flags)
			}

			// line 0 low, line 2 high
			r := k.lastRequest()
			k.mu.Lock()
			r.values = 0x2
			k.mu.Unlock()

			buf := make([]bool, 2)
			values, err := lines.GetValues(ctx, buf)
			require.NoError(t, err)
			assert.Equal(t, []bool{false, true}, values)

			k.mu.Lock()
			r.values = 0x1
			k.mu.Unlock()
			values, err = lines.GetValues(ctx, buf)
			require.NoError(t, err)
			assert.Equal(t, []bool{true, false}, values)
		})
	}
}

func TestSetMasked(t *testing.T) {
	for _, a := range []abi{abiV1{}, abiV2{}} {
		a := a
		t.Run(a.String(), func(t *testing.T) {
			k := newFakeKernel(8)
			chip := newTestChip(t, k, a)
			ctx := context.Background()

			out, err := Output(0, 1, 2, 3)
			require.NoError(t, err)
			lines, err := chip.RequestOutput(ctx, out.Drive(DriveOpenDrain))
			require.NoError(t, err)
			defer lines.Close()

			require.NoError(t, lines.SetValues(ctx, []bool{true, false, true, false}))
			m := Masked{}.Set(1, true).Set(3, true)
			require.NoError(t, lines.SetMasked(ctx, m))

			values, err := lines.GetValues(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []bool{true, true, true, true}, values)
			assert.Equal(t, uint64(0xf), k.lastRequest().values)

			require.NoError(t, lines.SetMasked(ctx, Masked{}.Set(0, false)))
			values, err = lines.GetValues(ctx, nil)
			require.NoError(t, err)
			assert.Equal(t, []bool{false, true, true, true}, values)

			assert.True(t, IsInvalidArgument(lines.SetValues(ctx, []bool{true})))
			assert.True(t, IsInvalidArgument(lines.SetMasked(ctx, Masked{}.Set(4, true))))
			assert.Equal(t, 3, k.lastRequest().sets, "invalid calls must not reach kernel")
		})
	}
}

func TestRequestEncoding(t *testing.T) {
	k := newFakeKernel(8)
	chip := newTestChip(t, k, abiV2{})
	ctx := context.Background()

	in, err := Input(5, 6)
	require.NoError(t, err)
	lines, err := chip.RequestInput(ctx, in.Bias(BiasDisable).Active(ActiveLow).Edge(EdgeRising).Consumer("watch"))
	require.NoError(t, err)
	defer lines.Close()
	assert.Equal(t, gpioV2FlagInput|gpioV2FlagBiasDisabled|gpioV2FlagActiveLow|gpioV2FlagEdgeRising, k.lastV2.config.flags)
	assert.Equal(t, "watch", cstr(k.lastV2.consumer[:]))
	assert.Equal(t, "watch", lines.Info().Consumer())
	assert.Equal(t, EdgeRising, lines.Info().Edge())
	assert.Equal(t, DirectionInput, lines.Info().Direction())
	assert.Equal(t, "gpiochip9", lines.Info().Chip())

	_, err = chip.RequestInput(ctx, InputOptions{})
	assert.True(t, IsInvalidArgument(err))
	in, err = Input(8)
	require.NoError(t, err)
	_, err = chip.RequestInput(ctx, in)
	assert.True(t, IsInvalidArgument(err), "err=%v", err)
}

func TestRequestV1Event(t *testing.T) {
	k := newFakeKernel(8)
	chip := newTestChip(t, k, abiV1{})
	ctx := context.Background()

	in, err := Input(5)
	require.NoError(t, err)
	lines, err := chip.RequestInput(ctx, in.Edge(EdgeBoth).Bias(BiasPullDown))
	require.NoError(t, err)
	defer lines.Close()
	assert.Equal(t, uint32(5), k.lastEv.lineOffset)
	assert.Equal(t, gpioeventRequestRising|gpioeventRequestFalling, k.lastEv.eventFlags)
	assert.Equal(t, gpiohandleRequestInput|gpiohandleRequestPullDown, k.lastEv.handleFlags)
}

func TestRequestKernelError(t *testing.T) {
	k := newFakeKernel(8)
	k.On("ioctl", "GPIO_V2_GET_LINE_IOCTL").Return(syscall.EBUSY).Once()
	chip := newTestChip(t, k, abiV2{})
	ctx := context.Background()

	in, err := Input(1)
	require.NoError(t, err)
	_, err = chip.RequestInput(ctx, in)
	require.Error(t, err)
	assert.True(t, IsIO(err), "err=%v", err)
	errno, ok := Errno(err)
	assert.True(t, ok)
	assert.Equal(t, syscall.EBUSY, errno)
	assert.Contains(t, err.Error(), "GPIO_V2_GET_LINE_IOCTL")

	// next attempt succeeds
	lines, err := chip.RequestInput(ctx, in)
	require.NoError(t, err)
	require.NoError(t, lines.Close())
}

func TestChipClose(t *testing.T) {
	chip := newTestChip(t, newFakeKernel(2), abiV2{})
	ctx := context.Background()

	out, err := Output(0)
	require.NoError(t, err)
	lines, err := chip.RequestOutput(ctx, out)
	require.NoError(t, err)

	require.NoError(t, chip.Close())
	assert.Equal(t, ErrClosed, chip.Close())
	_, err = chip.LineInfo(ctx, 0)
	assert.True(t, IsClosed(err))
	_, err = chip.RequestOutput(ctx, out)
	assert.True(t, IsClosed(err))

	// request outlives chip
	require.NoError(t, lines.SetValues(ctx, []bool{true}))
	require.NoError(t, lines.Close())
	assert.Equal(t, ErrClosed, lines.Close())
	_, err = lines.GetValues(ctx, nil)
	assert.True(t, IsClosed(err))
	assert.True(t, IsClosed(lines.SetValues(ctx, []bool{true})))
}

func TestChipCancelled(t *testing.T) {
	k := newFakeKernel(2)
	chip := newTestChip(t, k, abiV2{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chip.LineInfo(ctx, 0)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	k.AssertNotCalled(t, "ioctl", "GPIO_V2_GET_LINEINFO_IOCTL")
}

func TestDirectionTypes(t *testing.T) {
	t.Parallel()

	inType := reflect.TypeOf(&InputLines{})
	outType := reflect.TypeOf(&OutputLines{})
	for _, name := range []string{"SetValues", "SetMasked"} {
		_, ok := inType.MethodByName(name)
		assert.False(t, ok, "InputLines.%s", name)
		_, ok = outType.MethodByName(name)
		assert.True(t, ok, "OutputLines.%s", name)
	}
	_, ok := outType.MethodByName("ReadEvent")
	assert.False(t, ok, "OutputLines.ReadEvent")
	_, ok = reflect.TypeOf(InputOptions{}).MethodByName("Drive")
	assert.False(t, ok, "InputOptions.Drive")
	_, ok = reflect.TypeOf(OutputOptions{}).MethodByName("Edge")
	assert.False(t, ok, "OutputOptions.Edge")
	for _, name := range []string{"GetValues", "GetMasked", "Close", "Info"} {
		_, ok = inType.MethodByName(name)
		assert.True(t, ok, "InputLines.%s", name)
		_, ok = outType.MethodByName(name)
		assert.True(t, ok, "OutputLines.%s", name)
	}
}
