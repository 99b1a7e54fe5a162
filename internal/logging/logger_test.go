package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fictionbridge/internal/config"
	"fictionbridge/internal/logging"
	"fictionbridge/internal/services"
)

func tempLogPath(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "bridge.log")
	read := func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return logPath, read
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "fictionbridge.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	if content := read(); strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message with caller")

	if content := read(); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRendersComponentAndMethod(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithMethod(context.Background(), "project.list")
	ctx = services.WithRequestID(ctx, "req-1")
	component := logging.NewComponentLogger(logger, "sidecar")
	logging.WithContext(ctx, component).Info("call completed", logging.Duration("elapsed", 1500*time.Millisecond))

	content := read()
	for _, fragment := range []string{"INFO sidecar [project.list]: call completed", "correlation_id=req-1", "elapsed=1.5s"} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestConsoleLoggerQuotesValues(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("worker failed", logging.Error(errors.New("exit status 1")), logging.String("line", ""))

	content := read()
	if !strings.Contains(content, `error="exit status 1"`) {
		t.Fatalf("expected quoted error, got %q", content)
	}
	if !strings.Contains(content, `line=""`) {
		t.Fatalf("expected quoted empty value, got %q", content)
	}
}

func TestJSONLoggerIncludesSessionID(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath},
		SessionID:   "run-42",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("sidecar started", logging.Int(logging.FieldPID, 1234))

	line := strings.TrimSpace(read())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("decode json log line %q: %v", line, err)
	}
	if payload["msg"] != "sidecar started" || payload["level"] != "info" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload[logging.FieldSessionID] != "run-42" {
		t.Fatalf("expected session id, got %v", payload[logging.FieldSessionID])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"WARN":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for input, want := range cases {
		if got := logging.ParseLevel(input).String(); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := tempLogPath(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "health check failed", "sidecar_health_failed")

	content := read()
	for _, fragment := range []string{`"event_type":"sidecar_health_failed"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %s in %q", fragment, content)
		}
	}
}

func TestTeeLoggerWritesToEveryHandler(t *testing.T) {
	var primary, debug strings.Builder
	base := slog.New(slog.NewTextHandler(&primary, &slog.HandlerOptions{Level: slog.LevelInfo}))
	debugHandler := slog.NewJSONHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug})

	logger := logging.TeeLogger(base, debugHandler).With(logging.String("component", "sidecar"))
	logger.Debug("read line")
	logger.Info("worker started")

	if strings.Contains(primary.String(), "read line") {
		t.Fatalf("info handler received a debug record: %q", primary.String())
	}
	if !strings.Contains(primary.String(), "worker started") || !strings.Contains(primary.String(), "component=sidecar") {
		t.Fatalf("unexpected primary output %q", primary.String())
	}
	if !strings.Contains(debug.String(), `"msg":"read line"`) || !strings.Contains(debug.String(), `"component":"sidecar"`) {
		t.Fatalf("unexpected debug output %q", debug.String())
	}
}
