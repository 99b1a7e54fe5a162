package main

import (
	"strings"
	"testing"
)

func TestRenderTableKeepsHeaderCase(t *testing.T) {
	out := renderTable(
		[]string{"Seq", "Session"},
		[][]string{{"1", "abcd"}, {"2"}},
		[]columnAlignment{alignRight},
	)
	requireContains(t, out, "Session")
	if strings.Contains(out, "SESSION") {
		t.Fatalf("expected header case preserved, got:\n%s", out)
	}
	requireContains(t, out, "abcd")
	if lines := strings.Count(out, "\n") + 1; lines != 6 {
		t.Fatalf("expected 6 rendered lines (border, header, rule, 2 rows, border), got %d:\n%s", lines, out)
	}
}

func TestRenderTableWithoutHeaders(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
