package muxirc

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jes/muxirc/ircwire"
)

// newTestConn wraps one end of an in-memory pipe in a framedConn with its
// writer goroutine already running, and returns the peer end so a test can
// read whatever gets queued to it.
func newTestConn(t *testing.T) (*framedConn, net.Conn) {
	t.Helper()
	local, peer := net.Pipe()
	fc := newFramedConn(local, func() {})
	go fc.writeLoop()
	t.Cleanup(func() {
		fc.Close()
		peer.Close()
	})
	return fc, peer
}

// readMessages reads exactly n lines from peer and parses each with
// ircwire, failing the test if that doesn't happen within the deadline.
func readMessages(t *testing.T, peer net.Conn, n int) []ircwire.Message {
	t.Helper()
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))

	r := bufio.NewReader(peer)
	out := make([]ircwire.Message, 0, n)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "reading message %d", i)
		m, err := ircwire.ParseMessage(line)
		require.NoError(t, err, "parsing %q", line)
		out = append(out, m)
	}
	return out
}

// newTestUpstream builds an upstreamSession with its framed socket wired
// to an in-memory pipe, for tests that only exercise session/registry
// logic without a real network dial.
func newTestUpstream(t *testing.T, nick string) (*upstreamSession, net.Conn) {
	t.Helper()
	fc, peer := newTestConn(t)
	us := &upstreamSession{
		conn: fc,
		nick: nick,
		user: "u",
		host: "h",
		log:  stdLogger{},
	}
	us.registry = newChannelRegistry(us)
	return us, peer
}
