package muxirc

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "muxirc.conf")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %s", err)
	}
	return path
}

func TestReadConfigFile(t *testing.T) {
	path := writeTempConfig(t, `
# comment line

server = irc.example.org
server-port = 6667
username = bnc
real-name = The Bouncer
listen-port = 6697
listen-password = s3cret
`)

	cfg, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile returned error: %s", err)
	}

	if cfg.Server != "irc.example.org" {
		t.Errorf("Server = %q, want irc.example.org", cfg.Server)
	}
	if cfg.ServerPort != "6667" {
		t.Errorf("ServerPort = %q, want 6667", cfg.ServerPort)
	}
	if cfg.ListenPassword != "s3cret" {
		t.Errorf("ListenPassword = %q, want s3cret", cfg.ListenPassword)
	}
	if cfg.ServerPassword != "" {
		t.Errorf("ServerPassword = %q, want blank", cfg.ServerPassword)
	}
}

func TestReadConfigFileMissingRequiredKey(t *testing.T) {
	path := writeTempConfig(t, `
server = irc.example.org
`)

	_, err := ReadConfigFile(path)
	if err == nil {
		t.Fatal("ReadConfigFile succeeded, want error for missing keys")
	}
}

func TestReadConfigFileMissingPath(t *testing.T) {
	if _, err := ReadConfigFile(""); err == nil {
		t.Fatal("ReadConfigFile succeeded with blank path, want error")
	}
}
