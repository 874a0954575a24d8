package cli

import (
	"path/filepath"
	"testing"
)

func TestCollectTargets_FromFlags(t *testing.T) {
	targets, err := collectTargets(nil, "app", "app/bin/App.dll")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	if !filepath.IsAbs(targets[0].projectDir) || !filepath.IsAbs(targets[0].assemblyPath) {
		t.Errorf("target paths must be absolute: %+v", targets[0])
	}
}

func TestCollectTargets_FromPositionalPairs(t *testing.T) {
	targets, err := collectTargets([]string{"app:app/bin/App.dll", "lib:lib/bin/Lib.dll"}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(targets))
	}
}

func TestCollectTargets_RejectsMalformedPair(t *testing.T) {
	for _, arg := range []string{"app", "app:", ":App.dll"} {
		if _, err := collectTargets([]string{arg}, "", ""); err == nil {
			t.Errorf("target %q must be rejected", arg)
		}
	}
}

func TestCollectTargets_RequiresFlagsWithoutArgs(t *testing.T) {
	if _, err := collectTargets(nil, "app", ""); err == nil {
		t.Error("missing --assembly must be rejected")
	}
	if _, err := collectTargets(nil, "", "App.dll"); err == nil {
		t.Error("missing --project must be rejected")
	}
}
