// Package netutil holds the raw socket plumbing the reactor runs on: a raw
// listening socket and non-blocking accept, built directly on
// golang.org/x/sys/unix rather than net.Listener. The reactor drives its
// own epoll loop, and mixing that with Go's runtime netpoller (which also
// wants to own epoll on any net.Conn/net.Listener fd) would fight itself,
// so every fd here is opened and read/written through raw syscalls end to
// end.
package netutil

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/minikv/minikv/internal/errs"
)

// SetNonblock puts fd into O_NONBLOCK mode.
func SetNonblock(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return errs.WithStack(errors.Wrap(err, "netutil: set nonblocking"))
	}
	return nil
}

// Listen opens a non-blocking, SO_REUSEADDR TCP listening socket bound to
// addr (host:port, host may be empty for the wildcard address) and
// returns its file descriptor.
func Listen(addr string) (int, error) {
	sa, err := resolveTCPAddr(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errs.WithStack(errors.Wrap(err, "netutil: socket"))
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, errs.WithStack(errors.Wrap(err, "netutil: setsockopt SO_REUSEADDR"))
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, errs.WithStack(errors.Wrap(err, "netutil: bind"))
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, errs.WithStack(errors.Wrap(err, "netutil: listen"))
	}
	if err := SetNonblock(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Accept accepts one pending connection on the non-blocking listening fd,
// returning the new connection's fd already set non-blocking. It returns
// ok=false (no error) when no connection is currently pending (EAGAIN).
func Accept(listenFD int) (fd int, ok bool, err error) {
	for {
		connFD, _, err := unix.Accept(listenFD)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return -1, false, nil
		}
		if err != nil {
			return -1, false, errs.WithStack(errors.Wrap(err, "netutil: accept"))
		}
		if err := SetNonblock(connFD); err != nil {
			unix.Close(connFD)
			return -1, false, err
		}
		return connFD, true, nil
	}
}
