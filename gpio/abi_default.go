//go:build !gpio_v1
// +build !gpio_v1

package gpio

const defaultABI = "v2"
