package services_test

import (
	"errors"
	"strings"
	"testing"

	"fictionbridge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "sidecar", "spawn", "launch worker", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sidecar", "spawn", "launch worker"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestMarkerMatchesParent(t *testing.T) {
	marker := services.Marker("call timed out", services.ErrTimeout)
	err := services.Wrap(marker, "sidecar", "call", "echo", nil)
	if !errors.Is(err, marker) {
		t.Fatalf("expected marker match, got %v", err)
	}
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected parent match, got %v", err)
	}
	if errors.Is(err, services.ErrNotFound) {
		t.Fatal("expected unrelated sentinel not to match")
	}
}
