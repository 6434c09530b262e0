package netutil

import (
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// LocalAddr returns the "host:port" address a socket fd is actually bound
// to, useful when Listen was given port 0 and the kernel picked one.
func LocalAddr(fd int) (string, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return "", errors.Wrap(err, "netutil: getsockname")
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", errors.New("netutil: socket is not IPv4")
	}
	ip := net.IP(sa4.Addr[:])
	return fmt.Sprintf("%s:%d", ip.String(), sa4.Port), nil
}

// resolveTCPAddr turns a "host:port" string (host may be empty, meaning
// the wildcard address) into a unix.Sockaddr for Bind.
func resolveTCPAddr(addr string) (unix.Sockaddr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "netutil: invalid address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, errors.Wrapf(err, "netutil: invalid port in %q", addr)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if host == "" {
		return sa, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, errors.Errorf("netutil: cannot resolve host %q", host)
		}
		ip = ips[0]
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, errors.Errorf("netutil: address %q is not IPv4", addr)
	}
	copy(sa.Addr[:], ip4)
	return sa, nil
}
