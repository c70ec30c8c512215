// Package gpio talks to Linux GPIO character devices /dev/gpiochipN.
//
// Lines are requested as input or output, the two request kinds are
// different types, so SetValues on input lines does not compile.
//
//	chip, err := gpio.Open(ctx, "gpiochip0")
//	opts, err := gpio.Input(17, 27)
//	lines, err := chip.RequestInput(ctx, opts.Bias(gpio.BiasPullUp).Edge(gpio.EdgeBoth))
//	values, err := lines.GetValues(ctx, nil)
//	event, err := lines.ReadEvent(ctx)
//
// Both kernel uAPI versions are supported; v2 by default, build tag gpio_v1 or
// Config.ABI="v1" for kernels older than 5.10.
package gpio
