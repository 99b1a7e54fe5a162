package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"fictionbridge/internal/config"
	"fictionbridge/internal/services"
	"fictionbridge/internal/testsupport"
)

func TestDevLaunch(t *testing.T) {
	spec := DevLaunch("python3.11", "fiction_translator", "/src/sidecar")
	if spec.Executable != "python3.11" || spec.Dir != "/src/sidecar" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if !reflect.DeepEqual(spec.Args, []string{"-m", "fiction_translator"}) {
		t.Fatalf("unexpected args %v", spec.Args)
	}
	if spec.String() != "python3.11 -m fiction_translator" {
		t.Fatalf("unexpected command line %q", spec.String())
	}
}

func TestPackagedLaunch(t *testing.T) {
	spec := PackagedLaunch("/opt/ft")
	want := filepath.Join("/opt/ft", "binaries", packagedBinaryName(runtime.GOOS))
	if spec.Executable != want || spec.Dir != "/opt/ft" || len(spec.Args) != 0 {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if got := packagedBinaryName("windows"); got != "fiction-translator-sidecar.exe" {
		t.Fatalf("unexpected windows binary name %q", got)
	}
	if got := packagedBinaryName("linux"); got != "fiction-translator-sidecar" {
		t.Fatalf("unexpected linux binary name %q", got)
	}
}

func TestResolveLaunchModes(t *testing.T) {
	cfg := config.Default()
	cfg.Sidecar.ProjectDir = "/src/sidecar"
	cfg.Sidecar.LogLevel = "DEBUG"
	cfg.Sidecar.Env = map[string]string{"B": "2", "A": "1"}

	spec, err := ResolveLaunch(&cfg)
	if err != nil {
		t.Fatalf("ResolveLaunch returned error: %v", err)
	}
	if spec.Executable != "python3.11" || spec.Dir != "/src/sidecar" {
		t.Fatalf("unexpected dev spec %+v", spec)
	}
	if !reflect.DeepEqual(spec.Env, []string{"FT_LOG_LEVEL=DEBUG", "A=1", "B=2"}) {
		t.Fatalf("unexpected env %v", spec.Env)
	}

	cfg.Sidecar.Mode = config.ModePackaged
	cfg.Sidecar.ResourceDir = "/opt/ft"
	spec, err = ResolveLaunch(&cfg)
	if err != nil {
		t.Fatalf("ResolveLaunch returned error: %v", err)
	}
	if spec.Dir != "/opt/ft" || filepath.Dir(spec.Executable) != filepath.Join("/opt/ft", "binaries") {
		t.Fatalf("unexpected packaged spec %+v", spec)
	}

	cfg.Sidecar.Mode = config.ModeCustom
	cfg.Sidecar.Executable = "/usr/bin/worker"
	cfg.Sidecar.Args = []string{"--stdio"}
	cfg.Sidecar.Workdir = "/tmp"
	spec, err = ResolveLaunch(&cfg)
	if err != nil {
		t.Fatalf("ResolveLaunch returned error: %v", err)
	}
	if spec.Executable != "/usr/bin/worker" || spec.Dir != "/tmp" || !reflect.DeepEqual(spec.Args, []string{"--stdio"}) {
		t.Fatalf("unexpected custom spec %+v", spec)
	}

	cfg.Sidecar.Mode = "remote"
	if _, err := ResolveLaunch(&cfg); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := ResolveLaunch(nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for nil config, got %v", err)
	}
}

func TestResolvedLaunchPassesEnvironment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Sidecar.LogLevel = "WARNING"
	cfg.Sidecar.Env["HELPER_EXTRA"] = "present"

	spec, err := ResolveLaunch(cfg)
	if err != nil {
		t.Fatalf("ResolveLaunch returned error: %v", err)
	}
	sup := New()
	if err := sup.Start(context.Background(), spec); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(func() { _ = sup.Stop() })

	result, err := sup.Call(context.Background(), "env", nil)
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	var out map[string]string
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out["level"] != "WARNING" || out["extra"] != "present" {
		t.Fatalf("unexpected worker environment %v", out)
	}
}
