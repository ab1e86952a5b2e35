package main

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestRun_DryRunPrintsConfigAndExits0(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--dry-run", "--db", filepath.Join(dir, "idx.db")}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected config output on stdout")
	}
}

func TestRun_RejectsInvalidConfig(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--depth", "0"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("expected exit code 2 for an invalid config, got %d", code)
	}
	if errOut.Len() == 0 {
		t.Fatalf("expected an error message on stderr")
	}
}

func TestRun_DemoWalksSyntheticChain(t *testing.T) {
	dir := t.TempDir()
	var out, errOut bytes.Buffer
	code := run([]string{"--db", filepath.Join(dir, "idx.db"), "--demo"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, errOut.String())
	}
	if out.Len() == 0 {
		t.Fatalf("expected demo output on stdout")
	}
}
