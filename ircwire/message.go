// Package ircwire encodes and decodes IRC protocol messages as described by
// RFC 1459/2812 section 2.3.1: one message per CRLF-terminated line, an
// optional ":prefix", a command that is either a textual opcode or a
// three-digit numeric, and up to fifteen space-separated parameters (the
// last of which may be a ":"-prefixed trailing parameter containing
// spaces).
package ircwire

import (
	"strings"
)

// MaxLineLength is the maximum size of an encoded protocol line, including
// the trailing CRLF.
const MaxLineLength = 512

// maxParams is the maximum number of parameters a message may carry.
const maxParams = 15

// Command identifies an IRC command, either a well known textual opcode
// (canonicalized to upper case), a raw three digit numeric reply (kept in
// its original digit form, e.g. "001"), or the CmdInvalid sentinel for an
// opcode we don't recognize.
type Command string

// Recognized textual commands. Matching against this table is
// case-insensitive and requires a full-length match.
const (
	CmdPass     Command = "PASS"
	CmdNick     Command = "NICK"
	CmdUser     Command = "USER"
	CmdServer   Command = "SERVER"
	CmdOper     Command = "OPER"
	CmdQuit     Command = "QUIT"
	CmdSquit    Command = "SQUIT"
	CmdJoin     Command = "JOIN"
	CmdPart     Command = "PART"
	CmdMode     Command = "MODE"
	CmdTopic    Command = "TOPIC"
	CmdNames    Command = "NAMES"
	CmdList     Command = "LIST"
	CmdInvite   Command = "INVITE"
	CmdKick     Command = "KICK"
	CmdVersion  Command = "VERSION"
	CmdStats    Command = "STATS"
	CmdLinks    Command = "LINKS"
	CmdTime     Command = "TIME"
	CmdConnect  Command = "CONNECT"
	CmdTrace    Command = "TRACE"
	CmdAdmin    Command = "ADMIN"
	CmdInfo     Command = "INFO"
	CmdPrivmsg  Command = "PRIVMSG"
	CmdNotice   Command = "NOTICE"
	CmdWho      Command = "WHO"
	CmdWhois    Command = "WHOIS"
	CmdWhowas   Command = "WHOWAS"
	CmdKill     Command = "KILL"
	CmdPing     Command = "PING"
	CmdPong     Command = "PONG"
	CmdError    Command = "ERROR"
	CmdAway     Command = "AWAY"
	CmdRehash   Command = "REHASH"
	CmdRestart  Command = "RESTART"
	CmdSummon   Command = "SUMMON"
	CmdUsers    Command = "USERS"
	CmdWallops  Command = "WALLOPS"
	CmdUserhost Command = "USERHOST"
	CmdIson     Command = "ISON"
	CmdCap      Command = "CAP"
	CmdMotd     Command = "MOTD"

	// CmdInvalid is the sentinel command for an unrecognized textual
	// opcode. A message with this command carries the original opcode
	// string as Params[0] so re-serializing preserves it.
	CmdInvalid Command = "INVALID"
)

// Named numeric replies used by the router.
const (
	RplWelcome      Command = "001"
	RplYourHost     Command = "002"
	RplCreated      Command = "003"
	RplMyInfo       Command = "004"
	RplISupport     Command = "005"
	RplTopic        Command = "332"
	RplTopicWhoTime Command = "333"
	RplMotd         Command = "372"
	RplMotdStart    Command = "375"
	RplEndOfMotd    Command = "376"
	ErrNotOnChannel Command = "442"
	ErrNeedMoreParams Command = "461"
	ErrPasswdMismatch Command = "464"
	ErrNicknameInUse  Command = "433"
)

var textualCommands = map[string]Command{
	"PASS": CmdPass, "NICK": CmdNick, "USER": CmdUser, "SERVER": CmdServer,
	"OPER": CmdOper, "QUIT": CmdQuit, "SQUIT": CmdSquit, "JOIN": CmdJoin,
	"PART": CmdPart, "MODE": CmdMode, "TOPIC": CmdTopic, "NAMES": CmdNames,
	"LIST": CmdList, "INVITE": CmdInvite, "KICK": CmdKick,
	"VERSION": CmdVersion, "STATS": CmdStats, "LINKS": CmdLinks,
	"TIME": CmdTime, "CONNECT": CmdConnect, "TRACE": CmdTrace,
	"ADMIN": CmdAdmin, "INFO": CmdInfo, "PRIVMSG": CmdPrivmsg,
	"NOTICE": CmdNotice, "WHO": CmdWho, "WHOIS": CmdWhois,
	"WHOWAS": CmdWhowas, "KILL": CmdKill, "PING": CmdPing, "PONG": CmdPong,
	"ERROR": CmdError, "AWAY": CmdAway, "REHASH": CmdRehash,
	"RESTART": CmdRestart, "SUMMON": CmdSummon, "USERS": CmdUsers,
	"WALLOPS": CmdWallops, "USERHOST": CmdUserhost, "ISON": CmdIson,
	"CAP": CmdCap, "MOTD": CmdMotd,
}

// IsNumeric reports whether cmd is a three digit numeric reply.
func (cmd Command) IsNumeric() bool {
	if len(cmd) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if cmd[i] < '0' || cmd[i] > '9' {
			return false
		}
	}
	return true
}

// Prefix is the optional ":nick[!user][@host]" header on a message.
type Prefix struct {
	Nick string
	User string
	Host string
}

// Empty reports whether the prefix carries no information at all.
func (p Prefix) Empty() bool {
	return p.Nick == "" && p.User == "" && p.Host == ""
}

// String renders the prefix without its leading ':'.
func (p Prefix) String() string {
	if p.Nick == "" && p.User == "" && p.Host == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Nick)
	if p.User != "" {
		b.WriteByte('!')
		b.WriteString(p.User)
	}
	if p.Host != "" {
		b.WriteByte('@')
		b.WriteString(p.Host)
	}
	return b.String()
}

// Message holds one parsed (or to-be-serialized) IRC protocol message. It
// is immutable once constructed and meant to be discarded after dispatch.
type Message struct {
	Prefix  Prefix
	Command Command
	Params  []string
}

// SourceNick is a convenience accessor for Prefix.Nick.
func (m Message) SourceNick() string {
	return m.Prefix.Nick
}

// Param returns the i'th parameter, or "" if there aren't that many.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Empty reports whether this message carries no command at all, which
// happens for blank input lines. Callers should skip these.
func (m Message) Empty() bool {
	return m.Command == "" && len(m.Params) == 0 && m.Prefix.Empty()
}
