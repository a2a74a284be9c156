package loglevel

import "testing"

func TestFilterError(t *testing.T) {
	lines := []string{
		"2024-01-01T00:00:00 INFO start",
		"2024-01-01T00:00:01 [ERROR] boom",
	}

	got := Filter(lines, "ERROR")
	if len(got) != 1 {
		t.Fatalf("expected 1 line, got %d: %v", len(got), got)
	}
	if got[0] != lines[1] {
		t.Fatalf("expected %q, got %q", lines[1], got[0])
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	lines := []string{
		"warn: disk almost full",
		"all good here",
		"2024-01-01T00:00:02 [WARN] retrying",
	}

	got := Filter(lines, "warn")
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(got), got)
	}
}

func TestFilterAllPassesThrough(t *testing.T) {
	lines := []string{"a", "b", "c"}
	for _, level := range []string{"", "all", "ALL", "  all  "} {
		got := Filter(lines, level)
		if len(got) != 3 {
			t.Fatalf("level %q: expected passthrough of 3 lines, got %d", level, len(got))
		}
	}
}

func TestFilterWholeWordOnly(t *testing.T) {
	lines := []string{
		"ERRORS detected in module",
		"one ERROR here",
	}
	got := Filter(lines, "ERROR")
	if len(got) != 1 || got[0] != lines[1] {
		t.Fatalf("expected only whole-word match, got %v", got)
	}
}

func TestMatch(t *testing.T) {
	if !Match("[DEBUG] verbose output", "debug") {
		t.Fatal("expected bracketed token to match")
	}
	if Match("plain line", "debug") {
		t.Fatal("expected no match")
	}
}
