package muxirc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jes/muxirc/ircwire"
)

// TestPingIsAnsweredAndNotFannedOut is scenario S3.
func TestPingIsAnsweredAndNotFannedOut(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	dfc, dpeer := newTestConn(t)
	defer dpeer.Close()
	d := newDownstreamSession(dfc, us)
	us.addDownstream(d)

	us.dispatch(ircwire.Message{Command: ircwire.CmdPing, Params: []string{"tolsun.oulu.fi"}})

	pong := readMessages(t, upPeer, 1)[0]
	require.Equal(t, ircwire.CmdPong, pong.Command)
	require.Equal(t, "tolsun.oulu.fi", pong.Param(0))

	require.NoError(t, dpeer.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 1)
	_, err := dpeer.Read(buf)
	require.Error(t, err)
}

// TestMotdGatingCoversOnlyRequestingDownstreams is testable property 6.
func TestMotdGatingCoversOnlyRequestingDownstreams(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	wantFC, wantPeer := newTestConn(t)
	defer wantPeer.Close()
	idleFC, idlePeer := newTestConn(t)
	defer idlePeer.Close()

	wants := newDownstreamSession(wantFC, us)
	idle := newDownstreamSession(idleFC, us)
	us.addDownstream(wants)
	us.addDownstream(idle)

	wants.motd = motdWant
	us.requestMotdIfWanted()
	require.Equal(t, motdWant, us.motd)
	motdReq := readMessages(t, upPeer, 1)[0]
	require.Equal(t, ircwire.CmdMotd, motdReq.Command)

	us.dispatch(ircwire.Message{Command: ircwire.RplMotdStart, Params: []string{"muxbncabc", "- server message of the day -"}})
	us.dispatch(ircwire.Message{Command: ircwire.RplMotd, Params: []string{"muxbncabc", "- hello -"}})
	us.dispatch(ircwire.Message{Command: ircwire.RplEndOfMotd, Params: []string{"muxbncabc", "End of MOTD"}})

	got := readMessages(t, wantPeer, 3)
	require.Equal(t, ircwire.RplMotdStart, got[0].Command)
	require.Equal(t, ircwire.RplMotd, got[1].Command)
	require.Equal(t, ircwire.RplEndOfMotd, got[2].Command)
	require.Equal(t, motdIdle, wants.motd)
	require.Equal(t, motdIdle, us.motd)

	require.NoError(t, idlePeer.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 1)
	_, err := idlePeer.Read(buf)
	require.Error(t, err)
}

// TestWelcomeBurstCapturedAndRewrittenOnNickChange covers the
// RPL_WELCOME-family capture plus the NICK handler's rewrite of cached
// welcome messages when our own nick changes.
func TestWelcomeBurstCapturedAndRewrittenOnNickChange(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	us.dispatch(ircwire.Message{Command: ircwire.RplWelcome, Params: []string{"muxbncabc", "Welcome"}})
	require.Len(t, us.welcomeBurst, 1)

	us.dispatch(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: "muxbncabc"},
		Command: ircwire.CmdNick,
		Params:  []string{"newnick"},
	})
	require.Equal(t, "newnick", us.nick)
	require.Equal(t, "newnick", us.welcomeBurst[0].Params[0])
}

func TestNicknameInUseGeneratesReplacementWhenNoDownstreams(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	us.dispatch(ircwire.Message{Command: ircwire.ErrNicknameInUse, Params: []string{"*", "muxbncabc", "Nickname is already in use"}})

	retry := readMessages(t, upPeer, 1)[0]
	require.Equal(t, ircwire.CmdNick, retry.Command)
	require.NotEqual(t, "muxbncabc", retry.Param(0))
	require.Equal(t, retry.Param(0), us.nick)
}

func TestNicknameInUseIsFannedWhenDownstreamsAttached(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	dfc, dpeer := newTestConn(t)
	defer dpeer.Close()
	d := newDownstreamSession(dfc, us)
	us.addDownstream(d)

	m := ircwire.Message{Command: ircwire.ErrNicknameInUse, Params: []string{"*", "muxbncabc", "Nickname is already in use"}}
	us.dispatch(m)

	got := readMessages(t, dpeer, 1)[0]
	require.Equal(t, ircwire.ErrNicknameInUse, got.Command)
	require.Equal(t, "muxbncabc", us.nick)

	require.NoError(t, upPeer.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 1)
	_, err := upPeer.Read(buf)
	require.Error(t, err)
}

func TestJoinFansToChannelMembersOnly(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()

	memberFC, memberPeer := newTestConn(t)
	defer memberPeer.Close()
	other := newDownstreamSession(memberFC, us)
	us.addDownstream(other)

	us.registry.channels["#x"] = &channel{
		name: "#x", display: "#x", state: channelJoined,
		members: map[*downstreamSession]struct{}{other: {}},
	}

	us.dispatch(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: "someoneelse", User: "u", Host: "h"},
		Command: ircwire.CmdJoin,
		Params:  []string{"#x"},
	})

	got := readMessages(t, memberPeer, 1)[0]
	require.Equal(t, "someoneelse", got.Prefix.Nick)
}

func TestCaptureHostFromAnySelfAddressedMessage(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()
	us.user = ""
	us.host = ""

	require.False(t, us.gotHost)
	us.dispatch(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: "muxbncabc", User: "bnc", Host: "host.example.org"},
		Command: ircwire.CmdMode,
		Params:  []string{"muxbncabc", "+i"},
	})

	require.True(t, us.gotHost)
	require.Equal(t, "bnc", us.user)
	require.Equal(t, "host.example.org", us.host)
}

// TestCaptureHostLatchesUserAndHostIndependently covers the case where the
// user and host become known in two separate self-addressed messages
// rather than both at once.
func TestCaptureHostLatchesUserAndHostIndependently(t *testing.T) {
	us, upPeer := newTestUpstream(t, "muxbncabc")
	defer upPeer.Close()
	us.user = ""
	us.host = ""

	us.dispatch(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: "muxbncabc", User: "bnc"},
		Command: ircwire.CmdMode,
		Params:  []string{"muxbncabc", "+i"},
	})
	require.False(t, us.gotHost)
	require.Equal(t, "bnc", us.user)
	require.Equal(t, "", us.host)

	us.dispatch(ircwire.Message{
		Prefix:  ircwire.Prefix{Nick: "muxbncabc", Host: "host.example.org"},
		Command: ircwire.CmdMode,
		Params:  []string{"muxbncabc", "+i"},
	})
	require.True(t, us.gotHost)
	require.Equal(t, "bnc", us.user)
	require.Equal(t, "host.example.org", us.host)
}
