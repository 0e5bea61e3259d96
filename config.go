package muxirc

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Config is the populated configuration a caller hands the engine. Loading
// it from disk, flags, or any other delivery mechanism is outside the
// multiplexing core (spec section 1's Non-goals); ReadConfigFile below is a
// convenience for the cmd/muxirc binary, not part of the engine's API
// surface.
type Config struct {
	// Server is the upstream IRC server hostname.
	Server string
	// ServerPort is the upstream IRC server port.
	ServerPort string
	// ServerPassword is an optional upstream PASS.
	ServerPassword string

	// Username and RealName are sent in the upstream USER command.
	Username string
	RealName string

	// ListenPort is the local bind the engine listens for downstreams on.
	ListenPort string
	// ListenPassword, if set, is required of each downstream via PASS
	// before any other command is accepted.
	ListenPassword string
}

// ReadConfigFile loads a "key = value" config file, one setting per line.
// Lines beginning with '#' (after leading whitespace) are comments; blank
// lines are ignored. This mirrors the teacher's vendored config reader,
// reimplemented here as a first-party package rather than re-vendored
// under our own module path (see DESIGN.md).
func ReadConfigFile(path string) (Config, error) {
	raw, err := readStringMap(path)
	if err != nil {
		return Config{}, err
	}

	required := []string{"server", "server-port", "username", "real-name", "listen-port"}
	for _, key := range required {
		if _, ok := raw[key]; !ok {
			return Config{}, errors.Errorf("missing required config key: %s", key)
		}
	}

	cfg := Config{
		Server:         raw["server"],
		ServerPort:     raw["server-port"],
		ServerPassword: raw["server-password"],
		Username:       raw["username"],
		RealName:       raw["real-name"],
		ListenPort:     raw["listen-port"],
		ListenPassword: raw["listen-password"],
	}

	return cfg, nil
}

func readStringMap(path string) (map[string]string, error) {
	if path == "" {
		return nil, errors.New("config path may not be blank")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening config file")
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	return out, nil
}
