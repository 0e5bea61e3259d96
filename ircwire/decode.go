package ircwire

import (
	"fmt"
	"strings"
)

// ParseMessage parses a single line of the IRC wire format. A trailing CRLF
// (or LF) is tolerated and stripped. An empty line yields a zero Message
// (Empty() reports true) and no error; callers should skip it rather than
// dispatch it.
//
// Parsing is total: any malformed line yields an error, never a panic, so a
// caller can log and drop it without ending the session.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Message{}, nil
	}

	var m Message
	pos := 0

	if line[0] == ':' {
		prefix, next, err := parsePrefix(line)
		if err != nil {
			return Message{}, fmt.Errorf("parsing prefix: %w", err)
		}
		m.Prefix = prefix
		pos = next
	}

	cmd, rawTok, next, err := parseCommand(line, pos)
	if err != nil {
		return Message{}, fmt.Errorf("parsing command: %w", err)
	}
	pos = next

	if cmd == CmdInvalid {
		m.Params = append(m.Params, rawTok)
	}

	params, err := parseParams(line, pos)
	if err != nil {
		return Message{}, fmt.Errorf("parsing params: %w", err)
	}
	if len(m.Params)+len(params) > maxParams {
		return Message{}, fmt.Errorf("too many parameters")
	}

	m.Command = cmd
	m.Params = append(m.Params, params...)

	return m, nil
}

// parsePrefix parses a leading ":nick[!user][@host]" and returns the
// position of the first non-space character following it.
func parsePrefix(line string) (Prefix, int, error) {
	if line[0] != ':' {
		return Prefix{}, 0, fmt.Errorf("prefix does not start with ':'")
	}

	sp := strings.IndexByte(line, ' ')
	if sp == -1 {
		return Prefix{}, 0, fmt.Errorf("no space after prefix")
	}
	raw := line[1:sp]
	if raw == "" {
		return Prefix{}, 0, fmt.Errorf("empty prefix")
	}

	var p Prefix
	p.Nick = raw
	if bang := strings.IndexByte(raw, '!'); bang != -1 {
		p.Nick = raw[:bang]
		rest := raw[bang+1:]
		if at := strings.IndexByte(rest, '@'); at != -1 {
			p.User = rest[:at]
			p.Host = rest[at+1:]
		} else {
			p.User = rest
		}
	} else if at := strings.IndexByte(raw, '@'); at != -1 {
		p.Nick = raw[:at]
		p.Host = raw[at+1:]
	}

	pos := sp + 1
	for pos < len(line) && line[pos] == ' ' {
		pos++
	}
	if pos >= len(line) {
		return Prefix{}, 0, fmt.Errorf("malformed message: prefix only")
	}

	return p, pos, nil
}

// parseCommand parses the command token starting at index. Numeric
// commands must be exactly three digits. Unknown textual tokens yield
// CmdInvalid along with the original (non-canonicalized) token so the
// caller can stash it as Params[0].
func parseCommand(line string, index int) (cmd Command, rawTok string, pos int, err error) {
	if index >= len(line) {
		return "", "", 0, fmt.Errorf("no command found")
	}

	if line[index] >= '0' && line[index] <= '9' {
		if index+3 > len(line) {
			return "", "", 0, fmt.Errorf("truncated numeric command")
		}
		digits := line[index : index+3]
		for _, c := range digits {
			if c < '0' || c > '9' {
				return "", "", 0, fmt.Errorf("malformed numeric command %q", digits)
			}
		}
		pos = index + 3
		if pos < len(line) && line[pos] != ' ' {
			return "", "", 0, fmt.Errorf("unexpected character after numeric command")
		}
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}
		return Command(digits), "", pos, nil
	}

	end := strings.IndexByte(line[index:], ' ')
	var tok string
	if end == -1 {
		tok = line[index:]
	} else {
		tok = line[index : index+end]
	}
	if tok == "" {
		return "", "", 0, fmt.Errorf("zero length command")
	}

	pos = index + len(tok)
	for pos < len(line) && line[pos] == ' ' {
		pos++
	}

	if cmd, ok := textualCommands[strings.ToUpper(tok)]; ok {
		return cmd, "", pos, nil
	}
	return CmdInvalid, tok, pos, nil
}

// parseParams parses the (possibly empty) parameter list starting at
// index, which must point either past the end of the line or at the first
// character of the next parameter (no leading space).
func parseParams(line string, index int) ([]string, error) {
	var params []string
	pos := index

	for pos < len(line) {
		if line[pos] == ':' {
			params = append(params, line[pos+1:])
			return params, nil
		}

		sp := strings.IndexByte(line[pos:], ' ')
		if sp == -1 {
			params = append(params, line[pos:])
			return params, nil
		}

		params = append(params, line[pos:pos+sp])
		pos += sp
		for pos < len(line) && line[pos] == ' ' {
			pos++
		}
	}

	return params, nil
}
