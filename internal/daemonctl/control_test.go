package daemonctl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"fictionbridge/internal/config"
	"fictionbridge/internal/daemon"
	"fictionbridge/internal/ipc"
	"fictionbridge/internal/logging"
	"fictionbridge/internal/testsupport"
)

func TestHelperProcess(t *testing.T) {
	testsupport.MaybeRunStubWorker()
}

func serveDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	d, err := daemon.New(cfg, logger, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})
	return d
}

func TestLaunchArgs(t *testing.T) {
	got := launchArgs(LaunchOptions{SocketPath: " /tmp/fb.sock ", ConfigPath: "/etc/fb.toml", Diagnostic: true})
	want := []string{"daemon", "--socket", "/tmp/fb.sock", "--config", "/etc/fb.toml", "--diagnostic"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("launchArgs = %v, want %v", got, want)
	}
	if got := launchArgs(LaunchOptions{}); !reflect.DeepEqual(got, []string{"daemon"}) {
		t.Fatalf("expected bare daemon args, got %v", got)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected empty executable to fail")
	}
}

func TestOfflineDaemon(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")

	alive, pid, err := ProcessInfo(socket)
	if err != nil || alive || pid != 0 {
		t.Fatalf("expected offline daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}
	if err := WaitForShutdown(socket, time.Second); err != nil {
		t.Fatalf("WaitForShutdown on missing socket: %v", err)
	}
	if _, err := StopAndTerminate(socket, nil, time.Second); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	snapshot, err := BuildStatusSnapshot(socket)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snapshot.Reachable {
		t.Fatal("expected unreachable snapshot")
	}
}

func TestEnsureStartedAgainstRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	serveDaemon(t, cfg)

	result, err := EnsureStarted(cfg.SocketPath(), "", LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != StartStateStarted || result.Launched {
		t.Fatalf("expected worker start without launch, got %+v", result)
	}

	result, err = EnsureStarted(cfg.SocketPath(), "", LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("second EnsureStarted: %v", err)
	}
	if result.State != StartStateAlreadyRunning {
		t.Fatalf("expected already running, got %+v", result)
	}

	snapshot, err := BuildStatusSnapshot(cfg.SocketPath())
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if !snapshot.Reachable || !snapshot.Status.Connected || snapshot.Status.WorkerPID == 0 {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}

	alive, pid, err := ProcessInfo(cfg.SocketPath())
	if err != nil || !alive || pid != os.Getpid() {
		t.Fatalf("expected in-process daemon, got alive=%v pid=%d err=%v", alive, pid, err)
	}
}

func TestForceKillProcessValidation(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "fictionbridge.pid")

	if _, err := ForceKillProcess(pidPath, "", 0); err == nil {
		t.Fatal("expected missing pid to fail")
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, err := ForceKillProcess(pidPath, "", 0); err == nil || !strings.Contains(err.Error(), "refusing") {
		t.Fatalf("expected refusal to kill the current process, got %v", err)
	}
}
