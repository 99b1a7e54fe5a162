package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSessionIDHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := newSessionIDHandler(slog.NewJSONHandler(&buf, nil), "run-123")

	slog.New(handler).With("extra", "value").Info("daemon started")

	output := buf.String()
	if !strings.Contains(output, `"session_id":"run-123"`) {
		t.Fatalf("expected session_id in output, got: %s", output)
	}
	if !strings.Contains(output, `"extra":"value"`) {
		t.Fatalf("expected extra attr in output, got: %s", output)
	}
}

func TestSessionIDHandlerNilBase(t *testing.T) {
	if _, ok := newSessionIDHandler(nil, "run-123").(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when base is nil")
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	var first, second bytes.Buffer
	base := slog.New(slog.NewTextHandler(&first, nil))
	logger := TeeLogger(base, slog.NewTextHandler(&second, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Debug("debug only")
	logger.Info("both")

	if strings.Contains(first.String(), "debug only") {
		t.Fatalf("expected base handler to drop debug, got %q", first.String())
	}
	if !strings.Contains(second.String(), "debug only") || !strings.Contains(second.String(), "both") {
		t.Fatalf("expected tee handler to receive all records, got %q", second.String())
	}
	if !strings.Contains(first.String(), "both") {
		t.Fatalf("expected base handler to receive info, got %q", first.String())
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		pct   float64
		stage string
		want  bool
	}{
		{0, "translate", true},
		{10, "translate", false},
		{26, "translate", true},
		{30, "translate", false},
		{5, "review", true},
		{100, "review", true},
		{100, "review", false},
		{-1, "export", true},
		{-1, "export", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.pct, step.stage); got != step.want {
			t.Fatalf("step %d (%v %s): got %v want %v", i, step.pct, step.stage, got, step.want)
		}
	}
	s.Reset()
	if !s.ShouldLog(0, "export") {
		t.Fatal("expected emit after reset")
	}
}

func TestStampHandlerAddsEveryAttr(t *testing.T) {
	var buf bytes.Buffer
	handler := newStampHandler(slog.NewJSONHandler(&buf, nil), slog.String("a", "1"), slog.Int("b", 2))
	slog.New(handler).WithGroup("call").Info("done", "method", "echo")

	output := buf.String()
	if !strings.Contains(output, `"a":"1"`) || !strings.Contains(output, `"b":2`) {
		t.Fatalf("expected stamped attrs, got: %s", output)
	}

	plain := slog.NewJSONHandler(&buf, nil)
	if newStampHandler(plain) != plain {
		t.Fatal("expected handler without stamp to be returned unchanged")
	}
}
