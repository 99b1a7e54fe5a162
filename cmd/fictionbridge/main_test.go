package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunExitCodes(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--help"}, &stdout, &stderr); code != 0 {
		t.Fatalf("--help exit code = %d, stderr=%q", code, stderr.String())
	}
	requireContains(t, stdout.String(), "invoke")

	stdout.Reset()
	stderr.Reset()
	code := run([]string{"no-such-command"}, &stdout, &stderr)
	if code != 1 || !strings.HasPrefix(stderr.String(), "fictionbridge: ") {
		t.Fatalf("unexpected exit %d stderr=%q", code, stderr.String())
	}
}

func TestRunReportsDialErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	var stdout, stderr bytes.Buffer
	socket := filepath.Join(t.TempDir(), "gone.sock")
	code := run([]string{"--socket", socket, "--config", env.configPath, "invoke", "echo"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr.String(), "fictionbridge start")
}
