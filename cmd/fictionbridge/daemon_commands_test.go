package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestStatusOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.sock")

	out, _, err := runCLI(t, []string{"status"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[ERROR] Not running")
	requireContains(t, out, "Mode:")
}

func TestStartAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Worker started")

	out, _, err = runCLI(t, []string{"start"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	requireContains(t, out, "Worker already running")

	out, _, err = runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Running (pid")
	requireContains(t, out, "Pending")
	requireContains(t, out, "Archive:")
	requireContains(t, out, "[OK] Ready (command:")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var view statusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode status json %q: %v", out, err)
	}
	if !view.Reachable || !view.Connected || view.State != "running" || view.WorkerPID == 0 {
		t.Fatalf("unexpected status view %+v", view)
	}
}

func TestStopOffline(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.sock")

	out, _, err := runCLI(t, []string{"stop"}, missing, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if strings.TrimSpace(out) != "Daemon is not running" {
		t.Fatalf("unexpected stop output %q", out)
	}
}

func TestDaemonLaunchOptions(t *testing.T) {
	socket := " /tmp/fb.sock "
	configPath := "/etc/fictionbridge.toml"
	ctx := newCommandContext(&socket, &configPath)

	opts := daemonLaunchOptions(ctx, true)
	if opts.SocketPath != "/tmp/fb.sock" || opts.ConfigPath != configPath || !opts.Diagnostic {
		t.Fatalf("unexpected launch options %+v", opts)
	}
}
