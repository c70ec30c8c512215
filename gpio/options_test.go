package gpio

import (
	"flag"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsConstruct(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		offsets []uint32
		valid   bool
	}{
		{"single", []uint32{0}, true},
		{"empty", nil, false},
		{"duplicate", []uint32{3, 1, 3}, false},
		{"max", seqOffsets(MaxValues), true},
		{"too-many", seqOffsets(MaxValues + 1), false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			_, errIn := Input(c.offsets...)
			_, errOut := Output(c.offsets...)
			if c.valid {
				assert.NoError(t, errIn)
				assert.NoError(t, errOut)
			} else {
				assert.True(t, IsInvalidArgument(errIn), "err=%v", errIn)
				assert.True(t, IsInvalidArgument(errOut), "err=%v", errOut)
			}
		})
	}
}

func TestOptionsChain(t *testing.T) {
	t.Parallel()

	offsets := []uint32{4, 2}
	base, err := Input(offsets...)
	require.NoError(t, err)
	offsets[0] = 99
	assert.Equal(t, []uint32{4, 2}, base.Offsets(), "offsets must be copied")

	in := base.Active(ActiveLow).Bias(BiasPullUp).Edge(EdgeBoth).Consumer("test")
	r := in.request()
	assert.Equal(t, DirectionInput, r.direction)
	assert.Equal(t, ActiveLow, r.active)
	assert.Equal(t, BiasPullUp, r.bias)
	assert.Equal(t, EdgeBoth, r.edge)
	assert.Equal(t, "test", r.consumer)
	// base unchanged
	r0 := base.request()
	assert.Equal(t, ActiveHigh, r0.active)
	assert.Equal(t, EdgeNone, r0.edge)
	assert.Equal(t, "", r0.consumer)

	out, err := Output(1, 2, 3)
	require.NoError(t, err)
	out = out.Drive(DriveOpenDrain).Values([]bool{true, false, true, true})
	r = out.request()
	assert.Equal(t, DirectionOutput, r.direction)
	assert.Equal(t, DriveOpenDrain, r.drive)
	assert.Equal(t, EdgeNone, r.edge)
	assert.Equal(t, []bool{true, false, true}, r.values)

	assert.Error(t, InputOptions{}.request().validate())
}

func TestEnumText(t *testing.T) {
	t.Parallel()

	var b Bias
	require.NoError(t, b.Set("pull-down"))
	assert.Equal(t, BiasPullDown, b)
	assert.Equal(t, "pull-down", b.String())
	assert.True(t, IsInvalidArgument(b.Set("sideways")))

	var a Active
	require.NoError(t, a.UnmarshalText([]byte("LOW")))
	assert.Equal(t, ActiveLow, a)

	var d Drive
	var e EdgeDetect
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(ioutil.Discard)
	fs.Var(&d, "drive", "")
	fs.Var(&e, "edge", "")
	require.NoError(t, fs.Parse([]string{"-drive", "open-source", "-edge", "falling"}))
	assert.Equal(t, DriveOpenSource, d)
	assert.Equal(t, EdgeFalling, e)
	assert.Error(t, fs.Parse([]string{"-edge", "up"}))

	assert.Equal(t, "rising", Rising.String())
	assert.Equal(t, "invalid", Edge(0).String())
	assert.Equal(t, "output", DirectionOutput.String())
}

func seqOffsets(n int) []uint32 {
	result := make([]uint32, n)
	for i := range result {
		result[i] = uint32(i)
	}
	return result
}
