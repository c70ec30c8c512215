package gpio

import (
	"context"
	"os"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// asyncify runs blocking f on separate goroutine, so caller can give up via ctx.
// When ctx is done first, f still runs to completion and its result is dropped.
func asyncify(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("background task failed: %v", r)
			}
		}()
		done <- f()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// control borrows raw fd from f for the duration of fn.
// os.File holds a reference, so concurrent Close will not recycle fd under an ioctl.
func control(f *os.File, fn func(fd uintptr) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return errors.Annotate(err, "SyscallConn")
	}
	var fnErr error
	if err = rc.Control(func(fd uintptr) { fnErr = fn(fd) }); err != nil {
		return errors.Annotate(err, "SyscallConn.Control")
	}
	return fnErr
}

// fdHandoff passes new fd from worker to caller.
// If caller gave up waiting, whoever comes second closes the fd.
type fdHandoff struct {
	mu        sync.Mutex
	fd        int
	abandoned bool
}

func (h *fdHandoff) give(fd int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.abandoned {
		_ = unix.Close(fd)
		return
	}
	h.fd = fd
}

func (h *fdHandoff) abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abandoned = true
	if h.fd > 0 {
		_ = unix.Close(h.fd)
		h.fd = 0
	}
}
