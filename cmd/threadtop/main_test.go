package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/srodi/threadtop/pkg/types"
)

func TestParsePID(t *testing.T) {
	if pid, err := parsePID("4242"); err != nil || pid != 4242 {
		t.Fatalf("expected 4242, got %d err=%v", pid, err)
	}
	for _, bad := range []string{"", "0", "-3", "java"} {
		if _, err := parsePID(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestSetupFlagsWinOverConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("interval: 30s\nlimit: 25\nmode: memory\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	o := &options{}
	root := newRootCommand(o)
	err := root.ParseFlags([]string{
		"--config", cfgPath,
		"--log-file", filepath.Join(dir, "threadtop.log"),
		"--interval", "2s",
		"--filter", " Worker ",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, _, closeLog, err := o.setup(root)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer closeLog()

	if cfg.Interval != 2*time.Second {
		t.Fatalf("flag interval should win, got %v", cfg.Interval)
	}
	if cfg.Limit != 25 || cfg.ParsedMode() != types.ModeMemory {
		t.Fatalf("unset flags should keep file values, got %+v", cfg)
	}
	if cfg.Filter != "worker" {
		t.Fatalf("filter should be normalised, got %q", cfg.Filter)
	}
}

func TestSetupRejectsBadMode(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	o := &options{}
	root := newRootCommand(o)
	if err := root.ParseFlags([]string{"--config", cfgPath, "--mode", "7"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if _, _, _, err := o.setup(root); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRootRequiresPID(t *testing.T) {
	root := newRootCommand(&options{})
	root.SetArgs([]string{})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Fatalf("expected missing pid error")
	}
}
