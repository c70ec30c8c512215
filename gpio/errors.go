package gpio

import (
	"fmt"
	"os"
	"syscall"

	"github.com/juju/errors"
)

// ErrClosed is returned by any operation on a Chip or line request after Close.
var ErrClosed = errors.New("gpio: already closed")

// ProtocolError reports a kernel response that failed a consistency check.
type ProtocolError struct {
	Op   string
	Got  int
	Want int
	Msg  string
}

func (e *ProtocolError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("gpio protocol: %s: %s (%d)", e.Op, e.Msg, e.Got)
	}
	return fmt.Sprintf("gpio protocol: %s: size=%d expected=%d", e.Op, e.Got, e.Want)
}

func invalidArgf(format string, args ...interface{}) error {
	return errors.NotValidf(format, args...)
}

// IsInvalidArgument reports bad offsets, oversized requests, mismatched buffers
// and paths which are not GPIO character devices.
func IsInvalidArgument(err error) bool { return errors.IsNotValid(err) }

// IsProtocol reports kernel responses of unexpected shape.
func IsProtocol(err error) bool {
	_, ok := errors.Cause(err).(*ProtocolError)
	return ok
}

// IsIO reports failed open/ioctl/read system calls.
func IsIO(err error) bool {
	switch errors.Cause(err).(type) {
	case *os.SyscallError, *os.PathError, syscall.Errno:
		return true
	}
	return false
}

// IsClosed reports use after Close().
func IsClosed(err error) bool { return errors.Cause(err) == ErrClosed }

// Errno extracts the raw kernel error code, if any.
func Errno(err error) (syscall.Errno, bool) {
	switch e := errors.Cause(err).(type) {
	case syscall.Errno:
		return e, true
	case *os.SyscallError:
		errno, ok := e.Err.(syscall.Errno)
		return errno, ok
	case *os.PathError:
		errno, ok := e.Err.(syscall.Errno)
		return errno, ok
	}
	return 0, false
}
