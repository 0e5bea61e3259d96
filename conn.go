package muxirc

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jes/muxirc/ircwire"
)

// readBufferSize is the size of the bufio.Reader buffer under readLoop. It
// does not bound line length: ReadString keeps reading past a full buffer
// until it finds the newline, so a line longer than 1 KiB is returned whole.
const readBufferSize = 1024

// framedConn is the Go rendition of the spec's Framed Socket. Rather than a
// raw poll() loop, it runs a dedicated reader goroutine and a dedicated
// writer goroutine per connection (the pattern the teacher uses for every
// client: WriteChan/readLoop/writeLoop), which is the lightweight-task
// rendition spec section 5 explicitly permits. The sticky error flag is an
// atomic.Bool because the reader goroutine, the writer goroutine and the
// engine goroutine (through Fail, or a Queue that finds outgoing full) can
// each set it independently.
type framedConn struct {
	conn net.Conn
	r    *bufio.Reader

	// outgoing is drained by the writer goroutine. The engine sends here
	// to queue a message; it never blocks on the network itself.
	outgoing chan ircwire.Message

	errored atomic.Bool
	// deadOnce guards notifying the engine; either goroutine may be the
	// one to discover the socket is gone.
	deadOnce sync.Once
	onDead   func()

	// done is closed by Close so writeLoop can stop draining outgoing
	// without requiring outgoing itself to be closed (Queue may still be
	// racing a send against Close).
	done     chan struct{}
	closeOne sync.Once
}

// newFramedConn wraps conn. onDead is invoked at most once, by whichever
// caller first marks the socket dead (the read or write goroutine on an I/O
// failure, or Fail / a full Queue), so the engine can react promptly
// instead of waiting for its next sweep.
func newFramedConn(conn net.Conn, onDead func()) *framedConn {
	return &framedConn{
		conn:     conn,
		r:        bufio.NewReaderSize(conn, readBufferSize),
		outgoing: make(chan ircwire.Message, 64),
		onDead:   onDead,
		done:     make(chan struct{}),
	}
}

// Errored reports whether the sticky error flag is set.
func (fc *framedConn) Errored() bool {
	return fc.errored.Load()
}

func (fc *framedConn) markDead() {
	fc.errored.Store(true)
	fc.deadOnce.Do(fc.onDead)
}

// Queue enqueues a message for the writer goroutine. It never blocks on
// I/O; if the outgoing buffer is full (a slow or dead downstream) it drops
// the message and marks the socket errored rather than stalling the
// engine goroutine, preserving the "fan-out loops tolerate one bad
// recipient" design primitive from spec section 9.
func (fc *framedConn) Queue(m ircwire.Message) {
	if fc.Errored() {
		return
	}
	select {
	case fc.outgoing <- m:
	default:
		fc.markDead()
	}
}

// Close tears down the connection and stops writeLoop. Safe to call more
// than once.
func (fc *framedConn) Close() {
	fc.closeOne.Do(func() {
		close(fc.done)
	})
	_ = fc.conn.Close()
}

// Fail marks the socket's sticky error flag without waiting for an actual
// I/O failure, for handlers that need to end a session deliberately (e.g.
// QUIT, or a failed PASS challenge).
func (fc *framedConn) Fail() {
	fc.markDead()
}

// readLoop reads CRLF (or bare LF) terminated lines, parses each with
// ircwire, and invokes handle for every non-empty Message. It returns when
// a read fails (error or EOF), having marked the socket dead first.
func (fc *framedConn) readLoop(handle func(ircwire.Message)) {
	for {
		line, err := fc.r.ReadString('\n')
		if err != nil {
			fc.markDead()
			return
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			continue
		}

		m, perr := ircwire.ParseMessage(trimmed)
		if perr != nil {
			// ParseError: malformed line, logged and dropped, session
			// continues (spec section 7).
			continue
		}
		if m.Empty() {
			continue
		}

		handle(m)
	}
}

// writeLoop drains outgoing, encoding and writing each message, until
// Close is called or a write fails. Per spec section 4.2, writes are
// synchronous best-effort; partial writes without a reported error are
// treated as success.
func (fc *framedConn) writeLoop() {
	for {
		select {
		case <-fc.done:
			return
		case m := <-fc.outgoing:
			line, err := m.Encode()
			if err != nil {
				continue
			}
			if _, err := fc.conn.Write([]byte(line)); err != nil {
				fc.markDead()
				return
			}
		}
	}
}
