package daemonrun

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"fictionbridge/internal/testsupport"
)

func TestEnsureCurrentLogPointerReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "fictionbridge-a.log")
	second := filepath.Join(dir, "fictionbridge-b.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "fictionbridge.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "fictionbridge-b.log" {
		t.Fatalf("expected pointer to latest log, got %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fictionbridge.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be ignored, got %v", err)
	}
}

func TestLogLaunchSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logLaunchSnapshot(logger, cfg)
	out := buf.String()
	if !strings.Contains(out, "launch snapshot") || !strings.Contains(out, "mode=custom") {
		t.Fatalf("unexpected snapshot log %q", out)
	}
	if !strings.Contains(out, "executable_available=true") {
		t.Fatalf("expected the test binary to be found, got %q", out)
	}

	cfg.Sidecar.Mode = "bogus"
	buf.Reset()
	logLaunchSnapshot(logger, cfg)
	if !strings.Contains(buf.String(), "launch_error=") {
		t.Fatalf("expected launch error in %q", buf.String())
	}
}
