package muxirc

import (
	"github.com/jes/muxirc/ircwire"
)

type channelState int

const (
	channelJoining channelState = iota
	channelJoined
)

// channel mirrors the server's view of one channel's membership against
// the set of downstreams that have joined it locally (spec section 3).
type channel struct {
	name    string // canonical (lowercased) key
	display string // name as first requested, used when echoing
	topic   string
	state   channelState
	members map[*downstreamSession]struct{}
}

// channelRegistry is the Channel Registry component (spec section 4.3),
// owned exclusively by the upstream session. It is only ever touched from
// the engine goroutine, so no locking is required (the teacher's map
// fields on Server are treated the same way).
type channelRegistry struct {
	channels map[string]*channel
	up       *upstreamSession
}

func newChannelRegistry(up *upstreamSession) *channelRegistry {
	return &channelRegistry{
		channels: make(map[string]*channel),
		up:       up,
	}
}

// lookup does a case-insensitive map lookup by canonical name (testable property
// 3: lookup("#Foo") == lookup("#FOO")).
func (r *channelRegistry) lookup(name string) *channel {
	return r.channels[canonicalizeChannel(name)]
}

// joinFromDownstream implements spec section 4.3's join path and the
// single-upstream-JOIN tie-break (property 4): a channel not yet known to
// the registry is created once, in JOINING state, and exactly one JOIN is
// sent upstream no matter how many downstreams race to request it; every
// requester is simply added to the pending member set and receives its
// echo once the upstream confirms the join.
func (r *channelRegistry) joinFromDownstream(d *downstreamSession, name string) {
	ch := r.lookup(name)
	if ch == nil {
		ch = &channel{
			name:    canonicalizeChannel(name),
			display: name,
			state:   channelJoining,
			members: make(map[*downstreamSession]struct{}),
		}
		r.channels[ch.name] = ch
		r.up.conn.Queue(ircwire.Message{Command: ircwire.CmdJoin, Params: []string{name}})
	}

	ch.members[d] = struct{}{}

	if ch.state == channelJoined {
		d.conn.Queue(ircwire.Message{
			Prefix:  r.up.prefix(),
			Command: ircwire.CmdJoin,
			Params:  []string{ch.display},
		})
		r.up.conn.Queue(ircwire.Message{Command: ircwire.CmdTopic, Params: []string{ch.display}})
		r.up.conn.Queue(ircwire.Message{Command: ircwire.CmdNames, Params: []string{ch.display}})
	}
}

// onUpstreamJoin transitions a channel to JOINED once the server confirms
// our own JOIN, and fans the echo to every current member at once -- this
// is what makes property 4 hold: N racing joiners each added themselves to
// the pending set, and all N see exactly one echo here.
func (r *channelRegistry) onUpstreamJoin(name string, confirmed ircwire.Message) {
	ch := r.lookup(name)
	if ch == nil {
		// Unsolicited upstream JOIN for our own nick: create it (spec
		// section 3's "or on unsolicited upstream JOIN").
		ch = &channel{
			name:    canonicalizeChannel(name),
			display: name,
			members: make(map[*downstreamSession]struct{}),
		}
		r.channels[ch.name] = ch
	}
	ch.state = channelJoined

	echo := confirmed
	if echo.Empty() {
		echo = ircwire.Message{Prefix: r.up.prefix(), Command: ircwire.CmdJoin, Params: []string{ch.display}}
	}

	for d := range ch.members {
		d.conn.Queue(echo)
	}
}

// partFromDownstream implements spec section 4.3's part path: the client
// is dropped from the member set immediately and always gets its own echo;
// only when the set empties does an upstream PART get sent, and the
// channel itself is removed later, when the upstream confirms that PART
// (see upstreamSession.handlePart).
func (r *channelRegistry) partFromDownstream(d *downstreamSession, name string) {
	ch := r.lookup(name)

	d.conn.Queue(ircwire.Message{
		Prefix:  r.up.prefix(),
		Command: ircwire.CmdPart,
		Params:  []string{name},
	})

	if ch == nil {
		return
	}
	delete(ch.members, d)

	if len(ch.members) == 0 {
		r.up.conn.Queue(ircwire.Message{Command: ircwire.CmdPart, Params: []string{ch.display}})
	}
}

// deleteChannel removes a channel outright, called once the upstream
// confirms our own PART.
func (r *channelRegistry) deleteChannel(name string) {
	delete(r.channels, canonicalizeChannel(name))
}

// removeClientEverywhere purges d from every channel's membership, called
// on disconnect (spec section 4.3). The engine loop is single-threaded so
// this is a plain iteration; channels left with zero members after losing
// their only local member request an upstream PART just as an explicit
// part would.
func (r *channelRegistry) removeClientEverywhere(d *downstreamSession) {
	for _, ch := range r.channels {
		if _, ok := ch.members[d]; !ok {
			continue
		}
		delete(ch.members, d)
		if len(ch.members) == 0 {
			r.up.conn.Queue(ircwire.Message{Command: ircwire.CmdPart, Params: []string{ch.display}})
		}
	}
}
