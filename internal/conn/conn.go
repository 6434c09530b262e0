// Package conn implements the per-connection buffered state machine: each
// connection cycles between reading a request into its read buffer, running
// a single command against the keyspace, and writing the reply out of its
// write buffer, all without blocking the reactor goroutine.
package conn

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/minikv/minikv/internal/errs"
	"github.com/minikv/minikv/internal/wire"
)

// State is the connection's place in the REQ -> RES -> REQ cycle.
type State int

const (
	StateReq State = iota
	StateRes
	StateEnd
)

// Handler executes one already-decoded request and returns its reply body
// (not yet length-prefixed; EncodeFrame is applied by the connection).
type Handler func(args [][]byte) []byte

// Conn is one client connection's buffered read/write state, owned
// exclusively by the reactor goroutine (no locking).
type Conn struct {
	FD     int
	State  State
	maxMsg uint32

	rbuf  []byte
	rsize int

	wbuf  []byte
	wsize int
	wsent int

	handle Handler
}

// New returns a fresh connection in StateReq, with buffers sized to hold
// one maximal frame (4 byte length prefix + maxMsg payload).
func New(fd int, maxMsg uint32, handle Handler) *Conn {
	return &Conn{
		FD:     fd,
		State:  StateReq,
		maxMsg: maxMsg,
		rbuf:   make([]byte, 4+maxMsg),
		wbuf:   make([]byte, 4+maxMsg),
		handle: handle,
	}
}

// Close releases the connection's file descriptor. The reactor is
// responsible for deregistering it from epoll first.
func (c *Conn) Close() {
	unix.Close(c.FD)
}

// TryFillBuffer reads once from the socket into the read buffer and
// processes every complete request already buffered, flushing each reply
// optimistically as soon as it is produced instead of waiting for a
// write-readiness notification. It returns keepGoing=true when the caller
// should immediately try again (more data may already be buffered by the
// kernel).
func (c *Conn) TryFillBuffer() (keepGoing bool, err error) {
	space := len(c.rbuf) - c.rsize
	if space == 0 {
		// Read buffer is full without a parseable frame: the peer is
		// misbehaving (declared length within bounds but more data than
		// fits), so end the connection rather than spin.
		c.State = StateEnd
		return false, nil
	}
	var n int
	for {
		n, err = unix.Read(c.FD, c.rbuf[c.rsize:c.rsize+space])
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err == unix.EAGAIN {
		return false, nil
	}
	if err != nil {
		c.State = StateEnd
		return false, errs.WithStack(errors.Wrap(err, "conn: read"))
	}
	if n == 0 {
		// EOF. Not an error: the peer closed the connection.
		c.State = StateEnd
		return false, nil
	}
	c.rsize += n

	c.ProcessBuffered()
	return c.State == StateReq, nil
}

// ProcessBuffered runs every complete request already sitting in the read
// buffer, without touching the socket for input. The reactor also calls
// this after a deferred flush finally drains, so that requests pipelined
// behind a reply that couldn't be written immediately still get processed
// without waiting for another read-readiness notification.
func (c *Conn) ProcessBuffered() {
	for c.tryOneRequest() {
	}
}

// tryOneRequest parses and executes at most one complete request out of
// the read buffer, then opportunistically flushes the reply without
// blocking. It reports whether the caller should try another buffered
// request immediately (only possible once the flush lands back in
// StateReq).
func (c *Conn) tryOneRequest() bool {
	if c.State != StateReq {
		return false
	}
	payload, consumed, ok, err := wire.TryParseFrame(c.rbuf[:c.rsize], c.maxMsg)
	if err != nil {
		c.State = StateEnd
		return false
	}
	if !ok {
		return false
	}

	args, err := wire.DecodeArgs(payload, c.maxMsg)
	if err != nil {
		// A malformed payload is a protocol violation: end the connection.
		c.State = StateEnd
		return false
	}
	body := c.handle(args)

	frame := wire.EncodeFrame(body, c.maxMsg)
	copy(c.wbuf, frame)
	c.wsize = len(frame)
	c.wsent = 0

	remain := c.rsize - consumed
	if remain > 0 {
		copy(c.rbuf, c.rbuf[consumed:c.rsize])
	}
	c.rsize = remain

	c.State = StateRes
	for {
		keepGoing, err := c.TryFlushBuffer()
		if err != nil || !keepGoing {
			break
		}
	}
	return c.State == StateReq
}

// TryFlushBuffer writes pending reply bytes to the socket. It returns
// keepGoing=true when more bytes remain to be written and the caller
// should try again immediately.
func (c *Conn) TryFlushBuffer() (keepGoing bool, err error) {
	var n int
	for {
		n, err = unix.Write(c.FD, c.wbuf[c.wsent:c.wsize])
		if err == unix.EINTR {
			continue
		}
		break
	}
	if err == unix.EAGAIN {
		return false, nil
	}
	if err != nil {
		c.State = StateEnd
		return false, errs.WithStack(errors.Wrap(err, "conn: write"))
	}
	c.wsent += n
	if c.wsent < c.wsize {
		return true, nil
	}
	c.wsize, c.wsent = 0, 0
	c.State = StateReq
	return false, nil
}
