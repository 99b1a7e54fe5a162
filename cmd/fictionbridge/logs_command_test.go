package main

import (
	"os"
	"strings"
	"testing"

	"fictionbridge/internal/logs"
)

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	content := strings.Join([]string{
		`{"component":"daemon","msg":"daemon started"}`,
		`{"component":"sidecar.stderr","msg":"worker says hi"}`,
		`{"component":"sidecar","msg":"call finished"}`,
	}, "\n") + "\n"
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(logs.CurrentLogPath(env.cfg.Paths.LogDir), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "daemon started") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "call finished")

	out, _, err = runCLI(t, []string{"logs", "--worker"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs --worker: %v", err)
	}
	if strings.TrimSpace(out) != `{"component":"sidecar.stderr","msg":"worker says hi"}` {
		t.Fatalf("unexpected worker lines %q", out)
	}
}
