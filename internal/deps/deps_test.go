package deps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fictionbridge/internal/config"
	"fictionbridge/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
		{Name: "NoDir", Command: present, Dir: filepath.Join(binDir, "absent")},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || !strings.Contains(results[1].Detail, "not found") {
		t.Fatalf("expected missing binary, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %#v", results[2])
	}
	if results[3].Available || !strings.Contains(results[3].Detail, "directory") {
		t.Fatalf("expected missing directory, got %#v", results[3])
	}
}

func TestCheckWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	statuses := CheckWorker(cfg)
	if len(statuses) != 1 || !statuses[0].Available || statuses[0].Name != "Worker" {
		t.Fatalf("expected the stub worker to be available, got %#v", statuses)
	}

	cfg.Sidecar.Mode = config.ModeDev
	cfg.Sidecar.Python = "clearly-not-present-python"
	statuses = CheckWorker(cfg)
	if statuses[0].Name != "Python" || statuses[0].Available {
		t.Fatalf("expected missing interpreter, got %#v", statuses)
	}

	cfg.Sidecar.Mode = "bogus"
	statuses = CheckWorker(cfg)
	if statuses[0].Available || statuses[0].Detail == "" {
		t.Fatalf("expected launch error, got %#v", statuses)
	}
}
