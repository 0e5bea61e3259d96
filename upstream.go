package muxirc

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/jes/muxirc/ircwire"
)

// motdState is the two-level MOTD coordination state described in spec
// section 9: the server tracks one of these, and so does each downstream.
type motdState int

const (
	motdIdle motdState = iota
	motdWant
	motdReading
)

// upstreamSession is the single instance (spec section 3: "exactly one
// upstream session per process") that owns the connection to the IRC
// server, the canonical identity the whole bouncer presents, the channel
// registry, and the list of attached downstreams.
type upstreamSession struct {
	conn *framedConn

	nick string
	user string
	host string

	gotHost bool

	welcomeBurst []ircwire.Message

	motd motdState

	registry *channelRegistry

	downstreams []*downstreamSession

	serverPassword string
	listenPassword string
	username       string
	realname       string

	log Logger

	// fatal is set once the engine has begun tearing down the process;
	// it prevents double teardown from a racing read/write failure.
	fatal bool
}

// dialUpstream opens the outgoing TCP connection and performs the initial
// registration burst, grounded on local_server.go's dial-then-register
// pattern and original_source's irc_connect.
func dialUpstream(cfg Config, log Logger, onDead func()) (*upstreamSession, error) {
	addr := net.JoinHostPort(cfg.Server, cfg.ServerPort)
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return nil, errors.Wrap(err, "dialing upstream")
	}

	us := &upstreamSession{
		conn:           newFramedConn(conn, onDead),
		nick:           randomNick(),
		serverPassword: cfg.ServerPassword,
		listenPassword: cfg.ListenPassword,
		username:       cfg.Username,
		realname:       cfg.RealName,
		log:            log,
	}
	us.registry = newChannelRegistry(us)

	if us.serverPassword != "" {
		us.conn.Queue(ircwire.Message{Command: ircwire.CmdPass, Params: []string{us.serverPassword}})
	}
	us.conn.Queue(ircwire.Message{Command: ircwire.CmdNick, Params: []string{us.nick}})
	us.conn.Queue(ircwire.Message{
		Command: ircwire.CmdUser,
		Params:  []string{us.username, "localhost", cfg.Server, us.realname},
	})

	return us, nil
}

// prefix is the current canonical identity used on every message this
// bouncer attributes to itself when echoing to downstreams.
func (us *upstreamSession) prefix() ircwire.Prefix {
	return ircwire.Prefix{Nick: us.nick, User: us.user, Host: us.host}
}

func (us *upstreamSession) addDownstream(d *downstreamSession) {
	us.downstreams = append(us.downstreams, d)
}

// hasDownstream reports whether d is still attached. Used by the engine to
// ignore messages or death notifications that raced a removal -- matching
// the teacher's own "possibly from a client that disconnected" existence
// check in Server.start().
func (us *upstreamSession) hasDownstream(d *downstreamSession) bool {
	for _, other := range us.downstreams {
		if other == d {
			return true
		}
	}
	return false
}

func (us *upstreamSession) removeDownstream(d *downstreamSession) {
	for i, other := range us.downstreams {
		if other == d {
			us.downstreams = append(us.downstreams[:i], us.downstreams[i+1:]...)
			break
		}
	}
	us.registry.removeClientEverywhere(d)
}

// broadcast sends m to every attached downstream.
func (us *upstreamSession) broadcast(m ircwire.Message) {
	for _, d := range us.downstreams {
		d.conn.Queue(m)
	}
}

// fatalf implements the Fatal error path of spec section 7: broadcast a
// synthesized ERROR to every downstream and close the upstream (after a
// best-effort QUIT); exiting the process with status 1 is left to the
// caller. It is idempotent so a
// racing read and write failure only tears down once.
func (us *upstreamSession) fatalf(format string, args ...interface{}) {
	if us.fatal {
		return
	}
	us.fatal = true

	reason := fmt.Sprintf(format, args...)
	us.log.Printf("fatal upstream error: %s", reason)

	us.conn.Queue(ircwire.Message{Command: ircwire.CmdQuit, Params: []string{reason}})
	us.broadcast(ircwire.Message{Command: ircwire.CmdError, Params: []string{reason}})
	us.conn.Close()
}

// dispatch is the Router / Handlers table for messages arriving from the
// server, keyed by command tag (spec section 4.5).
func (us *upstreamSession) dispatch(m ircwire.Message) {
	us.captureHostIfOurs(m)

	switch m.Command {
	case ircwire.CmdPing:
		us.conn.Queue(ircwire.Message{Command: ircwire.CmdPong, Params: m.Params})

	case ircwire.CmdJoin:
		us.handleJoin(m)

	case ircwire.CmdPart:
		us.handlePart(m)

	case ircwire.CmdNick:
		us.handleNick(m)

	case ircwire.CmdTopic:
		us.handleTopic(m, false)
	case ircwire.RplTopic:
		us.handleTopic(m, true)

	case ircwire.RplWelcome, ircwire.RplYourHost, ircwire.RplCreated,
		ircwire.RplMyInfo, ircwire.RplISupport:
		us.welcomeBurst = append(us.welcomeBurst, m)
		us.broadcast(m)

	case ircwire.RplMotdStart, ircwire.RplMotd, ircwire.RplEndOfMotd:
		us.handleMotd(m)

	case ircwire.ErrNicknameInUse:
		us.handleNicknameInUse(m)

	case ircwire.CmdCap:
		// recognized but unhandled: silently drop (spec section 4.5).

	default:
		us.broadcast(m)
	}
}

// captureHostIfOurs learns user and host from any message whose prefix nick
// is ours, the first time each becomes available -- not just specific
// commands, following original_source's treatment of any self-addressed
// line as a valid capture point (see DESIGN.md). user and host are latched
// independently (matching server.c's separate checks) so a prefix carrying
// only one of them doesn't permanently blank out the other.
func (us *upstreamSession) captureHostIfOurs(m ircwire.Message) {
	if us.gotHost || m.Prefix.Empty() {
		return
	}
	if canonicalizeNick(m.Prefix.Nick) != canonicalizeNick(us.nick) {
		return
	}
	if us.user == "" && m.Prefix.User != "" {
		us.user = m.Prefix.User
	}
	if us.host == "" && m.Prefix.Host != "" {
		us.host = m.Prefix.Host
	}
	if us.user != "" && us.host != "" {
		us.gotHost = true
	}
}

func (us *upstreamSession) handleJoin(m ircwire.Message) {
	name := m.Param(0)
	if name == "" {
		return
	}

	if canonicalizeNick(m.Prefix.Nick) == canonicalizeNick(us.nick) {
		us.registry.onUpstreamJoin(name, m)
		return
	}

	ch := us.registry.lookup(name)
	if ch == nil {
		return
	}
	for d := range ch.members {
		d.conn.Queue(m)
	}
}

func (us *upstreamSession) handlePart(m ircwire.Message) {
	name := m.Param(0)
	if name == "" {
		return
	}

	if canonicalizeNick(m.Prefix.Nick) == canonicalizeNick(us.nick) {
		us.registry.deleteChannel(name)
		return
	}

	ch := us.registry.lookup(name)
	if ch == nil {
		return
	}
	for d := range ch.members {
		d.conn.Queue(m)
	}
}

func (us *upstreamSession) handleNick(m ircwire.Message) {
	oldNick := m.Prefix.Nick
	newNick := m.Param(0)

	us.broadcast(m)

	if canonicalizeNick(oldNick) != canonicalizeNick(us.nick) {
		return
	}

	us.nick = newNick

	for i, welcome := range us.welcomeBurst {
		if len(welcome.Params) > 0 {
			welcome.Params[0] = newNick
			us.welcomeBurst[i] = welcome
		}
	}
}

// handleTopic updates the target channel's topic. numeric is true for
// RPL_TOPIC, whose first parameter is our own nick and must be skipped
// when locating the channel name (spec section 4.5).
func (us *upstreamSession) handleTopic(m ircwire.Message, numeric bool) {
	idx := 0
	if numeric {
		idx = 1
	}
	name := m.Param(idx)
	topic := m.Param(idx + 1)

	ch := us.registry.lookup(name)
	if ch == nil {
		return
	}
	ch.topic = topic

	for d := range ch.members {
		d.conn.Queue(m)
	}
}

// handleMotd implements the gated forwarding rule: for each downstream,
// forward iff the server is IDLE, or both server and downstream are
// WANT, or the downstream is READING. Forwarding advances the
// downstream's state WANT->READING, and READING->IDLE on the end numeric.
// The server's own state advances identically after all downstreams have
// been considered.
func (us *upstreamSession) handleMotd(m ircwire.Message) {
	for _, d := range us.downstreams {
		forward := us.motd == motdIdle ||
			(us.motd == motdWant && d.motd == motdWant) ||
			d.motd == motdReading

		if !forward {
			continue
		}

		d.conn.Queue(m)

		if d.motd == motdWant {
			d.motd = motdReading
		}
		if m.Command == ircwire.RplEndOfMotd {
			d.motd = motdIdle
		}
	}

	if us.motd == motdWant {
		us.motd = motdReading
	}
	if m.Command == ircwire.RplEndOfMotd {
		us.motd = motdIdle
	}
}

// handleNicknameInUse implements spec section 4.5: fan the error to any
// attached downstream so a human can pick another nick, or if none are
// attached yet, resolve it ourselves with a freshly generated nick.
func (us *upstreamSession) handleNicknameInUse(m ircwire.Message) {
	if len(us.downstreams) > 0 {
		us.broadcast(m)
		return
	}

	us.nick = randomNick()
	us.conn.Queue(ircwire.Message{Command: ircwire.CmdNick, Params: []string{us.nick}})
}

// requestMotdIfWanted centralizes MOTD demand (spec section 4.5): called
// after a downstream completes registration, it raises the server's own
// motd state to WANT and issues a single MOTD request if any downstream
// wants one and the server is currently idle.
func (us *upstreamSession) requestMotdIfWanted() {
	wanted := false
	for _, d := range us.downstreams {
		if d.motd == motdWant {
			wanted = true
			break
		}
	}
	if wanted && us.motd == motdIdle {
		us.motd = motdWant
		us.conn.Queue(ircwire.Message{Command: ircwire.CmdMotd})
	}
}
