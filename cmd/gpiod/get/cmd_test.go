package get

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/gpiod/cmd/gpiod/subcmd"
	"github.com/temoto/gpiod/gpio"
	"github.com/temoto/gpiod/internal/config"
	"github.com/temoto/gpiod/log2"
)

func testConfig(t *testing.T) *config.Config {
	c, err := config.ReadConfig(strings.NewReader(fmt.Sprintf("dev_dir = %q", t.TempDir())), log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	return c
}

func TestMainArgs(t *testing.T) {
	t.Parallel()
	c := testConfig(t)
	ctx := context.Background()

	assert.True(t, errors.IsNotValid(Main(ctx, c, []string{"gpiochip0"})))
	assert.True(t, errors.IsNotValid(Main(ctx, c, []string{"-bias", "sideways", "gpiochip0", "1"})))
	assert.True(t, errors.IsNotValid(Main(ctx, c, []string{"gpiochip0", "one"})))

	args := []string{"gpiochip0"}
	for i := 0; i <= gpio.MaxValues; i++ {
		args = append(args, fmt.Sprint(i))
	}
	err := Main(ctx, c, args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many lines")
}

func TestMainMissingChip(t *testing.T) {
	t.Parallel()
	c := testConfig(t)

	err := Main(context.Background(), c, []string{"gpiochip0", "1"})
	require.Error(t, err)
	assert.True(t, gpio.IsIO(err), errors.ErrorStack(err))
	assert.Contains(t, err.Error(), filepath.Join(c.DevDir, "gpiochip0"))
}

func TestMainPrintsValues(t *testing.T) {
	c := testConfig(t)
	out := new(bytes.Buffer)
	savedOut, savedRead := subcmd.Stdout, readValues
	subcmd.Stdout = out
	defer func() { subcmd.Stdout, readValues = savedOut, savedRead }()

	type call struct {
		chip     string
		offsets  []uint32
		active   gpio.Active
		bias     gpio.Bias
		consumer string
	}
	var got call
	readValues = func(ctx context.Context, c *config.Config, chipName string, offsets []uint32, active gpio.Active, bias gpio.Bias, consumer string) ([]bool, error) {
		got = call{chipName, offsets, active, bias, consumer}
		values := make([]bool, len(offsets))
		for i, o := range offsets {
			values[i] = o%2 == 0
		}
		return values, nil
	}

	require.NoError(t, Main(context.Background(), c, []string{"gpiochip0", "0", "3", "2"}))
	assert.Equal(t, "1 0 1 \n", out.String())
	assert.Equal(t, call{"gpiochip0", []uint32{0, 3, 2}, gpio.ActiveHigh, gpio.BiasDisable, "gpioget"}, got)

	out.Reset()
	require.NoError(t, Main(context.Background(), c, []string{"-active", "low", "-bias", "pull-up", "-consumer", "doorbell", "gpiochip1", "5"}))
	assert.Equal(t, "0 \n", out.String())
	assert.Equal(t, call{"gpiochip1", []uint32{5}, gpio.ActiveLow, gpio.BiasPullUp, "doorbell"}, got)

	readValues = func(context.Context, *config.Config, string, []uint32, gpio.Active, gpio.Bias, string) ([]bool, error) {
		return nil, errors.NotFoundf("chip")
	}
	out.Reset()
	assert.True(t, errors.IsNotFound(Main(context.Background(), c, []string{"gpiochip0", "1"})))
	assert.Equal(t, "", out.String())
}
