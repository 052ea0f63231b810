package main

import (
	"testing"

	"github.com/triplekit/tripod/core"
)

func TestPatternArg(t *testing.T) {
	args := []string{"file.tpd", "http://ex.org/s", "?", `"lit"`}

	if got := patternArg(args, 1); got != "http://ex.org/s" {
		t.Fatalf("bound position = %q", got)
	}
	if got := patternArg(args, 2); got != core.Wildcard {
		t.Fatalf("question mark should map to the wildcard, got %q", got)
	}
	if got := patternArg(args, 3); got != `"lit"` {
		t.Fatalf("literal position = %q", got)
	}
	if got := patternArg(args, 4); got != core.Wildcard {
		t.Fatalf("missing position should map to the wildcard, got %q", got)
	}
}
