//go:build gpio_v1
// +build gpio_v1

package gpio

// Kernels before 5.10 only speak v1, build with -tags gpio_v1.
const defaultABI = "v1"
