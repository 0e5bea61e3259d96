package ircwire

import (
	"fmt"
	"strings"
)

// Encode renders m as a single CRLF-terminated wire line, capped at
// MaxLineLength bytes including the CRLF. If the fully rendered message
// would exceed the cap, parameters are dropped/truncated from the end so
// the CRLF itself is never split.
func (m Message) Encode() (string, error) {
	var b strings.Builder

	if !m.Prefix.Empty() {
		b.WriteByte(':')
		b.WriteString(m.Prefix.String())
		b.WriteByte(' ')
	}

	if m.Command == CmdInvalid && len(m.Params) > 0 {
		b.WriteString(m.Params[0])
	} else {
		b.WriteString(string(m.Command))
	}

	if b.Len()+2 > MaxLineLength {
		return "", fmt.Errorf("prefix/command alone exceed max line length")
	}

	if len(m.Params) > maxParams {
		return "", fmt.Errorf("too many parameters")
	}

	start := 0
	if m.Command == CmdInvalid {
		start = 1 // Params[0] was already emitted as the opcode itself.
	}

	for i := start; i < len(m.Params); i++ {
		param := m.Params[i]
		last := i == len(m.Params)-1
		trailing := last && needsTrailingColon(param)

		if trailing {
			param = ":" + param
		} else if strings.ContainsRune(param, ' ') {
			// A non-last parameter must not contain a space; this would
			// produce an unparsable line, so such a Message is rejected
			// rather than encoded.
			return "", fmt.Errorf("parameter %d contains a space but is not last", i)
		}

		sep := " "
		avail := MaxLineLength - 2 - b.Len() - len(sep)
		if avail <= 0 {
			break
		}
		if len(param) > avail {
			param = param[:avail]
		}
		b.WriteString(sep)
		b.WriteString(param)
	}

	b.WriteString("\r\n")

	return b.String(), nil
}

// needsTrailingColon reports whether a final parameter must be sent in
// ":trailing" form to round-trip through ParseMessage correctly.
func needsTrailingColon(param string) bool {
	return param == "" || param[0] == ':' || strings.ContainsRune(param, ' ')
}
