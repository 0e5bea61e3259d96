package muxirc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeNickAndChannel(t *testing.T) {
	require.Equal(t, "alice", canonicalizeNick("Alice"))
	require.Equal(t, canonicalizeChannel("#Foo"), canonicalizeChannel("#FOO"))
}

func TestRandomNickShapeIsEightLowercaseLetters(t *testing.T) {
	n := randomNick()
	require.Len(t, n, generatedNickLength)
	for _, r := range n {
		require.True(t, r >= 'a' && r <= 'z', "unexpected character %q in generated nick %q", r, n)
	}
}

func TestFirstParamSplitsOnFirstComma(t *testing.T) {
	require.Equal(t, "#a", firstParam("#a,#b,#c"))
	require.Equal(t, "#a", firstParam("#a"))
}

func TestIsChannelName(t *testing.T) {
	require.True(t, isChannelName("#general"))
	require.True(t, isChannelName("&local"))
	require.False(t, isChannelName("alice"))
	require.False(t, isChannelName(""))
}
