package muxirc

import (
	"github.com/jes/muxirc/ircwire"
)

// localServerName is the prefix used on numerics this bouncer originates
// itself, before a downstream has anything better to address it by.
const localServerName = "muxirc"

// downstreamSession is one local client connection (spec section 4.4).
type downstreamSession struct {
	conn *framedConn
	up   *upstreamSession

	authenticated     bool
	nickHandshakeDone bool
	motd              motdState

	passwordCaptured string
}

// newDownstreamSession creates a session in the correct initial auth
// state: authenticated unless a listen-side password is configured.
func newDownstreamSession(conn *framedConn, up *upstreamSession) *downstreamSession {
	return &downstreamSession{
		conn:          conn,
		up:            up,
		authenticated: up.listenPassword == "",
	}
}

func (d *downstreamSession) replyTarget() string {
	if d.nickHandshakeDone {
		return d.up.nick
	}
	return "*"
}

func (d *downstreamSession) sendNumeric(code ircwire.Command, params ...string) {
	all := append([]string{d.replyTarget()}, params...)
	d.conn.Queue(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: localServerName},
		Command: code,
		Params:  all,
	})
}

// dispatch is the Router / Handlers table for messages arriving from a
// downstream (spec section 4.4).
func (d *downstreamSession) dispatch(m ircwire.Message) {
	if !d.authenticated {
		if m.Command == ircwire.CmdPass {
			d.passwordCaptured = m.Param(0) // last value wins
			return
		}
		if d.passwordCaptured != d.up.listenPassword {
			d.sendNumeric(ircwire.ErrPasswdMismatch, "Incorrect password")
			d.conn.Fail()
			return
		}
		d.authenticated = true
		// Fall through: the command that triggered authentication is
		// still processed normally below.
	}

	switch m.Command {
	case ircwire.CmdNick:
		d.handleNick(m)

	case ircwire.CmdUser:
		d.handleUser(m)

	case ircwire.CmdJoin:
		if m.Param(0) == "" {
			d.sendNumeric(ircwire.ErrNeedMoreParams, "JOIN", "Not enough parameters")
			return
		}
		d.up.registry.joinFromDownstream(d, firstParam(m.Param(0)))

	case ircwire.CmdPart:
		if m.Param(0) == "" {
			d.sendNumeric(ircwire.ErrNeedMoreParams, "PART", "Not enough parameters")
			return
		}
		d.up.registry.partFromDownstream(d, firstParam(m.Param(0)))

	case ircwire.CmdPrivmsg:
		d.handlePrivmsg(m)

	case ircwire.CmdQuit:
		d.conn.Fail()

	case ircwire.CmdCap:
		// recognized but unhandled: ignore silently.

	default:
		d.up.conn.Queue(m)
	}
}

// handleNick implements the nick-reconciliation rule from spec section
// 4.4: the first NICK from a downstream is answered with a rewrite to the
// upstream's canonical nick, and only forwarded upstream for real if this
// client is the only downstream currently attached (see DESIGN.md). Whether
// a NICK has already succeeded upstream is not checked.
func (d *downstreamSession) handleNick(m ircwire.Message) {
	requested := m.Param(0)

	if !d.nickHandshakeDone {
		d.nickHandshakeDone = true

		d.conn.Queue(ircwire.Message{
			Prefix:  ircwire.Prefix{Nick: requested},
			Command: ircwire.CmdNick,
			Params:  []string{d.up.nick},
		})

		if len(d.up.downstreams) == 1 {
			d.up.conn.Queue(ircwire.Message{Command: ircwire.CmdNick, Params: []string{requested}})
		}
		return
	}

	d.up.conn.Queue(m)
}

// handleUser replays the captured welcome burst, queries our MODE, arms
// MOTD replay, and catches this newly attaching client up on every channel
// already joined via prior history: d is added to that channel's members
// (so it shares mirrored PRIVMSGs from here on) and sent a synthesized JOIN
// echo plus a TOPIC/NAMES refresh, the same as a downstream that joins an
// already-JOINED channel directly (spec section 4.4, scenario S2).
func (d *downstreamSession) handleUser(m ircwire.Message) {
	for _, welcome := range d.up.welcomeBurst {
		d.conn.Queue(welcome)
	}

	d.up.conn.Queue(ircwire.Message{Command: ircwire.CmdMode, Params: []string{d.up.nick}})

	d.motd = motdWant
	d.up.requestMotdIfWanted()

	for _, ch := range d.up.registry.channels {
		if ch.state != channelJoined {
			continue
		}
		ch.members[d] = struct{}{}

		d.conn.Queue(ircwire.Message{
			Prefix:  d.up.prefix(),
			Command: ircwire.CmdJoin,
			Params:  []string{ch.display},
		})
		d.up.conn.Queue(ircwire.Message{Command: ircwire.CmdTopic, Params: []string{ch.display}})
		d.up.conn.Queue(ircwire.Message{Command: ircwire.CmdNames, Params: []string{ch.display}})
	}
}

// handlePrivmsg mirrors a channel message to every other member of that
// channel and always forwards the original upstream (spec section 4.4,
// testable property 7).
func (d *downstreamSession) handlePrivmsg(m ircwire.Message) {
	if len(m.Params) < 2 {
		d.sendNumeric(ircwire.ErrNeedMoreParams, "PRIVMSG", "Not enough parameters")
		return
	}

	target := m.Param(0)
	if isChannelName(target) {
		if ch := d.up.registry.lookup(target); ch != nil {
			mirror := ircwire.Message{
				Prefix:  d.up.prefix(),
				Command: ircwire.CmdPrivmsg,
				Params:  m.Params,
			}
			for member := range ch.members {
				if member == d {
					continue
				}
				member.conn.Queue(mirror)
			}
		}
	}

	d.up.conn.Queue(m)
}
