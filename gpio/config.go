package gpio

import (
	"context"
	"path/filepath"

	"github.com/temoto/gpiod/log2"
)

// Config tells where to find devices and how to talk to them.
// Zero fields take values from DefaultConfig.
type Config struct {
	// DevDir is searched for chips by bare name and ListDevices.
	DevDir string
	// SysDir is sysfs mount point used to tell GPIO chips from other character devices.
	SysDir string
	// ABI is "v1", "v2" or empty for build default.
	ABI string
	// Log nil means logger from Open context (log2.ContextWithLogger), if any.
	Log *log2.Log
}

var DefaultConfig = Config{
	DevDir: "/dev",
	SysDir: "/sys",
}

func (c *Config) devDir() string {
	if c == nil || c.DevDir == "" {
		return DefaultConfig.DevDir
	}
	return c.DevDir
}

func (c *Config) sysDir() string {
	if c == nil || c.SysDir == "" {
		return DefaultConfig.SysDir
	}
	return c.SysDir
}

func (c *Config) log(ctx context.Context) *log2.Log {
	if c == nil || c.Log == nil {
		return log2.ContextValueLogger(ctx)
	}
	return c.Log
}

func (c *Config) abi() (abi, error) {
	if c == nil {
		return abiByName("")
	}
	return abiByName(c.ABI)
}

// resolve takes relative paths from DevDir, "gpiochip0" is DevDir/gpiochip0.
// Absolute paths are used as is.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.devDir(), path)
}

// Open with DefaultConfig.
func Open(ctx context.Context, path string) (*Chip, error) { return DefaultConfig.Open(ctx, path) }

// ListDevices with DefaultConfig.
func ListDevices() ([]string, error) { return DefaultConfig.ListDevices() }
