package gpio

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// checkDevice accepts only character devices bound to the gpio bus in sysfs.
func (c *Config) checkDevice(path string) error {
	st, err := os.Lstat(path)
	if err != nil {
		return errors.Trace(err)
	}
	if st.Mode()&os.ModeCharDevice == 0 {
		return errors.NotValidf("%s: not a character device", path)
	}
	sys, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return errors.NotValidf("%s: no device number", path)
	}
	rdev := uint64(sys.Rdev)
	link := filepath.Join(c.sysDir(), "dev", "char",
		fmt.Sprintf("%d:%d", unix.Major(rdev), unix.Minor(rdev)), "subsystem")
	subsystem, err := filepath.EvalSymlinks(link)
	if err != nil {
		return errors.NotValidf("%s: not a GPIO device (%v)", path, err)
	}
	bus, err := filepath.EvalSymlinks(filepath.Join(c.sysDir(), "bus", "gpio"))
	if err != nil || subsystem != bus {
		return errors.NotValidf("%s: not a GPIO device", path)
	}
	return nil
}

// ListDevices returns paths of GPIO chips in DevDir. Entries failing validation are skipped.
func (c *Config) ListDevices() ([]string, error) {
	dir := c.devDir()
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Annotatef(err, "ListDevices %s", dir)
	}
	result := make([]string, 0, 4)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if err := c.checkDevice(path); err != nil {
			c.log(context.Background()).Debugf("gpio: skip %s: %v", path, err)
			continue
		}
		result = append(result, path)
	}
	return result, nil
}
