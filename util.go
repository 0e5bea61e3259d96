package muxirc

import (
	"math/rand"
	"os"
	"strings"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano() ^ int64(os.Getpid()))
}

// canonicalizeNick converts a nick to its canonical representation, used as
// the key for comparing against the upstream's canonical nick.
func canonicalizeNick(n string) string {
	return strings.ToLower(n)
}

// canonicalizeChannel converts a channel name to its canonical
// representation (spec section 8, property 3: lookup is case-insensitive).
func canonicalizeChannel(c string) string {
	return strings.ToLower(c)
}

const nickLetters = "abcdefghijklmnopqrstuvwxyz"
const generatedNickLength = 8

// randomNick produces an eight lowercase letter nickname, used as the
// default canonical nick and when ERR_NICKNAMEINUSE must be resolved
// without any downstream attached to pick a replacement.
func randomNick() string {
	b := make([]byte, generatedNickLength)
	for i := range b {
		b[i] = nickLetters[rand.Intn(len(nickLetters))]
	}
	return string(b)
}

// firstParam splits a comma-separated JOIN/PART target list and returns
// only the first, per spec section 9's open question: comma lists are
// accepted but only the first target is handled.
func firstParam(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		return s[:i]
	}
	return s
}

func isChannelName(s string) bool {
	return len(s) > 0 && (s[0] == '#' || s[0] == '&')
}
